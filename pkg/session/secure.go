package session

import (
	"sync"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

// State is the lifecycle state of one SPDM session.
type State int

// Session lifecycle states.
const (
	StateHandshaking State = iota
	StateEstablished
	StateTerminated
)

// Context is one active SPDM session: its id, negotiated algorithms, key
// schedule output, and the two directional AEAD codecs secured messages
// flow through once the handshake completes.
type Context struct {
	mu sync.Mutex

	id     uint32
	usePSK bool
	state  State

	hashAlgo spdmcrypto.BaseHashAlgo
	aeadSuite spdmcrypto.AEADCipherSuite

	keys *Keys

	callbacks SequenceCallbacks

	encryptCodec *Codec // keyed for messages this endpoint sends
	decryptCodec *Codec // keyed for messages this endpoint receives
}

// NewContext constructs a Context mid-handshake; it has no keys until
// SetHandshakeKeys is called.
func NewContext(usePSK bool, hashAlgo spdmcrypto.BaseHashAlgo, aeadSuite spdmcrypto.AEADCipherSuite) *Context {
	return &Context{usePSK: usePSK, hashAlgo: hashAlgo, aeadSuite: aeadSuite, state: StateHandshaking}
}

// ID returns the session's composite 32-bit id.
func (c *Context) ID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// State returns the session's current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UsePSK reports whether this session was established via PSK_EXCHANGE
// rather than KEY_EXCHANGE.
func (c *Context) UsePSK() bool {
	return c.usePSK
}

// SetSecuredMessageCallbacks installs the transport binding's
// sequence-number encoding and padding limits, applying them to any
// already-established codecs. Call before the first Encrypt/Decrypt on a
// transport whose convention differs from the 8-byte default.
func (c *Context) SetSecuredMessageCallbacks(cb SequenceCallbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = cb
	if c.encryptCodec != nil {
		c.encryptCodec.SetCallbacks(cb)
	}
	if c.decryptCodec != nil {
		c.decryptCodec.SetCallbacks(cb)
	}
}

// SetHandshakeKeys installs the handshake-phase keys (TH1-derived) and
// the per-direction handshake traffic codecs FINISH/PSK_FINISH and any
// other in-handshake secured messages run over. The session stays in
// StateHandshaking: Establish swaps in the data-phase codecs once the
// handshake completes. requesterIsLocal tells it which direction is
// "encrypt" vs "decrypt" for this endpoint.
func (c *Context) SetHandshakeKeys(suite spdmcrypto.Suite, keys *Keys, requesterIsLocal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys

	reqCodec := NewCodec(suite, c.aeadSuite, keys.RequestHandshakeKey, keys.RequestHandshakeSalt)
	rspCodec := NewCodec(suite, c.aeadSuite, keys.ResponseHandshakeKey, keys.ResponseHandshakeSalt)
	reqCodec.SetCallbacks(c.callbacks)
	rspCodec.SetCallbacks(c.callbacks)

	if requesterIsLocal {
		c.encryptCodec, c.decryptCodec = reqCodec, rspCodec
	} else {
		c.encryptCodec, c.decryptCodec = rspCodec, reqCodec
	}
}

// Keys returns the key schedule state installed so far.
func (c *Context) Keys() *Keys {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys
}

// Establish installs the data-phase keys (TH2-derived) and the two
// directional codecs, and moves the session to StateEstablished.
// requesterIsLocal tells it which direction is "encrypt" vs "decrypt" for
// this endpoint.
func (c *Context) Establish(suite spdmcrypto.Suite, requesterIsLocal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqCodec := NewCodec(suite, c.aeadSuite, c.keys.RequestDataKey, c.keys.RequestDataSalt)
	rspCodec := NewCodec(suite, c.aeadSuite, c.keys.ResponseDataKey, c.keys.ResponseDataSalt)
	reqCodec.SetCallbacks(c.callbacks)
	rspCodec.SetCallbacks(c.callbacks)

	if requesterIsLocal {
		c.encryptCodec, c.decryptCodec = reqCodec, rspCodec
	} else {
		c.encryptCodec, c.decryptCodec = rspCodec, reqCodec
	}
	c.state = StateEstablished
}

// Encrypt seals payload as a secured message under whichever phase's
// codec is installed: the handshake codec between SetHandshakeKeys and
// Establish, the data codec afterward.
func (c *Context) Encrypt(payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTerminated || c.encryptCodec == nil {
		return nil, ErrNotEstablished
	}
	return c.encryptCodec.Seal(c.id, payload)
}

// Decrypt opens a received secured message under the current phase's
// codec.
func (c *Context) Decrypt(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateTerminated || c.decryptCodec == nil {
		return nil, ErrNotEstablished
	}
	return c.decryptCodec.Open(c.id, data)
}

// RekeyLocal rotates this endpoint's send-direction key, as when a local
// KEY_UPDATE(UPDATE_KEY) is acknowledged.
func (c *Context) RekeyLocal(suite spdmcrypto.Suite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	newKey, err := UpdateKey(suite, c.hashAlgo, c.aeadSuite, c.encryptCodec.key)
	if err != nil {
		return err
	}
	c.encryptCodec.Rekey(newKey)
	return nil
}

// RekeyPeer rotates the peer's receive-direction key, matching a received
// KEY_UPDATE(UPDATE_KEY).
func (c *Context) RekeyPeer(suite spdmcrypto.Suite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	newKey, err := UpdateKey(suite, c.hashAlgo, c.aeadSuite, c.decryptCodec.key)
	if err != nil {
		return err
	}
	c.decryptCodec.Rekey(newKey)
	return nil
}

// Terminate moves the session to StateTerminated and zeroizes its keys.
func (c *Context) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zeroizeLocked()
	c.state = StateTerminated
}

func (c *Context) zeroize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zeroizeLocked()
}

func (c *Context) zeroizeLocked() {
	if c.keys == nil {
		return
	}
	for _, b := range [][]byte{
		c.keys.HandshakeSecret, c.keys.RequestHandshakeSecret, c.keys.ResponseHandshakeSecret,
		c.keys.RequestFinishedKey, c.keys.ResponseFinishedKey,
		c.keys.RequestHandshakeKey, c.keys.RequestHandshakeSalt,
		c.keys.ResponseHandshakeKey, c.keys.ResponseHandshakeSalt,
		c.keys.MasterSecret,
		c.keys.RequestDataKey, c.keys.RequestDataSalt, c.keys.ResponseDataKey, c.keys.ResponseDataSalt,
	} {
		for i := range b {
			b[i] = 0
		}
	}
}
