// Package endpoint implements the SPDM endpoint context: the negotiated
// connection state, certificate and capability configuration, the
// transcript manager, and the session registry an endpoint (requester or
// responder) carries across a connection's lifetime.
package endpoint

import (
	"sync"

	"github.com/openspdm/spdm-go/pkg/session"
	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
	"github.com/openspdm/spdm-go/pkg/transcript"
	"github.com/pion/logging"
)

// Compile-time maxima this endpoint enforces. An endpoint that needs
// larger limits is a different deployment, not a runtime-configurable one:
// these size the certificate slot table and bound the certificate chains
// and PSK hint SetData accepts and the encapsulated certificate buffer.
// Transcript ledgers use transcript's own capacities, and no code path
// checks MaxMeasurementRecordSize.
const (
	MaxCertChainSize         = 64 * 1024
	MaxSlotCount             = 8
	MaxPSKHintSize           = 256
	MaxMeasurementRecordSize = 8 * 1024
)

// Local holds the configuration an endpoint brings to a connection before
// any negotiation happens: what it supports, and the credentials it can
// present.
type Local struct {
	SPDMVersion uint8
	CTExponent  uint8
	Capabilities uint32 // wire.CapabilityFlags, kept untyped here to avoid an import cycle with pkg/wire

	MeasurementHashAlgo spdmcrypto.MeasurementHashAlgo
	BaseAsymAlgo        spdmcrypto.BaseAsymAlgo
	BaseHashAlgo        spdmcrypto.BaseHashAlgo
	DHENamedGroup       spdmcrypto.DHENamedGroup
	AEADCipherSuite     spdmcrypto.AEADCipherSuite
	ReqBaseAsymAlgo     spdmcrypto.BaseAsymAlgo
	KeySchedule         spdmcrypto.KeyScheduleAlgo

	CertificateChains   [MaxSlotCount][]byte
	ProvisionedSlotMask uint8
	SignerKeyID         string // key id a Suite's AsymSign looks up to sign CHALLENGE_AUTH/MEASUREMENTS

	PSKHint []byte

	PeerRootCertHashProvision []byte
	PeerCertChainProvision    []byte

	BasicMutAuthRequested bool
	MutAuthRequested      uint8
}

// Connection holds what has been negotiated so far, growing as the
// connection state advances.
type Connection struct {
	State ConnectionState

	NegotiatedVersion             uint8
	NegotiatedCapabilities        uint32
	NegotiatedMeasurementHashAlgo spdmcrypto.MeasurementHashAlgo
	NegotiatedBaseAsymAlgo        spdmcrypto.BaseAsymAlgo
	NegotiatedBaseHashAlgo        spdmcrypto.BaseHashAlgo
	NegotiatedDHENamedGroup       spdmcrypto.DHENamedGroup
	NegotiatedAEADCipherSuite     spdmcrypto.AEADCipherSuite
	NegotiatedReqBaseAsymAlgo     spdmcrypto.BaseAsymAlgo

	PeerCertChain     []byte
	PeerPublicKeyRaw  []byte

	// UsedLocalCertSlot is the local certificate chain slot bound into the
	// current exchange's CHALLENGE_AUTH/KEY_EXCHANGE/FINISH signatures.
	// SlotNone (0xFF, mirrored here as a plain byte to avoid an import
	// cycle with pkg/wire) until a GET_CERTIFICATE or CHALLENGE names
	// one.
	UsedLocalCertSlot uint8
}

// ReceiveFlags tracks which request verbs a responder has already
// processed during the current connection, mirroring the original's
// SpdmCmdReceiveState bitmask. The connection state machine already
// enforces ordering for the core negotiation verbs; ReceiveFlags lets a
// responder additionally gate verbs that don't advance ConnectionState on
// their own (GET_MEASUREMENTS, KEY_EXCHANGE, FINISH and PSK_FINISH) on
// what has actually been seen. PSK_EXCHANGE is not gated.
type ReceiveFlags uint32

// Per-verb receive bits, set by a responder once it has successfully
// processed the corresponding request.
const (
	ReceivedGetVersion ReceiveFlags = 1 << iota
	ReceivedGetCapabilities
	ReceivedNegotiateAlgorithms
	ReceivedGetDigests
	ReceivedGetCertificate
	ReceivedChallenge
	ReceivedGetMeasurements
	ReceivedKeyExchange
	ReceivedFinish
	ReceivedPSKExchange
	ReceivedPSKFinish
)

// ResponseState tells a responder how it should answer the next request.
type ResponseState int

// Responder response states.
const (
	ResponseNormal ResponseState = iota
	ResponseBusy
	ResponseNotReady
	ResponseNeedsReset
)

// Context is the full state of one SPDM endpoint's connection: local
// configuration, negotiated connection info, transcript ledgers, the
// session registry, and the bookkeeping the responder needs for
// RESPOND_IF_READY and the requester needs for retry.
type Context struct {
	mu sync.Mutex

	Local      Local
	Connection Connection
	Transcript *transcript.Manager
	Sessions   *session.Registry

	latestSessionID uint32
	hasLatestSession bool

	Encap EncapContext

	ResponseState ResponseState
	LastRequest   []byte
	CurrentToken  uint8
	RetryTimes    int
	ErrorState    bool

	receiveFlags ReceiveFlags

	log logging.LeveledLogger
}

// MarkReceived records that a responder successfully processed the verb
// flag identifies.
func (c *Context) MarkReceived(flag ReceiveFlags) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiveFlags |= flag
}

// HasReceived reports whether every bit set in flags has been recorded by
// a prior MarkReceived call.
func (c *Context) HasReceived(flags ReceiveFlags) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveFlags&flags == flags
}

// Config configures a new Context.
type Config struct {
	Local         Local
	LoggerFactory logging.LoggerFactory
}

// NewContext constructs a Context in StateNotStarted.
func NewContext(cfg Config) *Context {
	c := &Context{
		Local:      cfg.Local,
		Connection: Connection{State: StateNotStarted, UsedLocalCertSlot: 0xFF},
		Transcript: transcript.NewManager(),
		Sessions:   session.NewRegistry(),
	}
	if cfg.LoggerFactory != nil {
		c.log = cfg.LoggerFactory.NewLogger("endpoint")
	}
	return c
}

// AdvanceState moves the connection state machine forward one step,
// rejecting any non-monotonic transition.
func (c *Context) AdvanceState(next ConnectionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Connection.State.canAdvanceTo(next) {
		return ErrInvalidStateTransition
	}
	if c.log != nil {
		c.log.Debugf("connection state %s -> %s", c.Connection.State, next)
	}
	c.Connection.State = next
	return nil
}

// State returns the connection's current state.
func (c *Context) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Connection.State
}

// AssignSession records id as the most recently assigned session, per the
// HANDSHAKE_IN_THE_CLEAR bookkeeping original_source keeps: a responder
// that allows a cleartext handshake needs to know which session id that
// applies to until the handshake finishes or the session is freed.
func (c *Context) AssignSession(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestSessionID = id
	c.hasLatestSession = true
}

// FreeSession clears the latest-session bookkeeping if it refers to id,
// and removes the session from the registry.
func (c *Context) FreeSession(id uint32) error {
	c.mu.Lock()
	if c.hasLatestSession && c.latestSessionID == id {
		c.hasLatestSession = false
		c.latestSessionID = 0
	}
	c.mu.Unlock()
	if err := c.Sessions.Free(id); err != nil {
		return ErrSessionNotFound
	}
	return nil
}

// LatestSessionID returns the most recently assigned session id, if any.
func (c *Context) LatestSessionID() (id uint32, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latestSessionID, c.hasLatestSession
}

// SetLastRequest caches the raw bytes of the most recent request, so a
// responder that answered ErrorResponseNotReady can replay it once
// RESPOND_IF_READY arrives with a matching token.
func (c *Context) SetLastRequest(req []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastRequest = append([]byte(nil), req...)
}

// Logger returns the endpoint's leveled logger, or nil if none was
// configured.
func (c *Context) Logger() logging.LeveledLogger {
	return c.log
}
