// Package transport defines the collaborator interfaces an SPDM endpoint
// needs from its host: how to move bytes to and from the peer, and how to
// wrap/unwrap an SPDM message inside the host's chosen transport binding
// (MCTP, PCI DOE, or anything else). This package implements neither
// binding; it only carries the function-object seams spec.md §6 names, plus
// an in-memory Pipe for tests and the demo command.
package transport

import (
	"context"
	"encoding/binary"
	"io"
)

// SendFunc transmits a fully transport-encoded message to the peer. ctx
// carries a deadline the way a real MCTP/PCI DOE binding would honor a
// timeout_ms parameter.
type SendFunc func(ctx context.Context, msg []byte) error

// ReceiveFunc blocks for the next fully transport-encoded message from the
// peer.
type ReceiveFunc func(ctx context.Context) ([]byte, error)

// EncodeFunc wraps an SPDM (or secured, app-layer) message in the host's
// transport binding. sessionID is 0 and haveSession is false for a message sent
// outside any session (the unsecured connection phase).
type EncodeFunc func(sessionID uint32, haveSession bool, isRequester, isApp bool, spdmMsg []byte) ([]byte, error)

// DecodeFunc is the inverse of EncodeFunc.
type DecodeFunc func(transportMsg []byte) (sessionID uint32, haveSession bool, isRequester, isApp bool, spdmMsg []byte, err error)

// SecuredMessageCallbacks supplies the two transport-specific knobs the
// secured-messages codec needs but cannot decide on its own: how the
// sequence number is encoded on the wire, and how much random padding a
// secured record may carry.
type SecuredMessageCallbacks interface {
	// SequenceNumber encodes seq into buf per the transport binding's
	// convention, returning the number of bytes written (0..8).
	SequenceNumber(seq uint64, buf []byte) int

	// MaxRandomCount returns the maximum padding length a secured record
	// may carry under this transport binding.
	MaxRandomCount() uint32
}

// DefaultSecuredMessageCallbacks is the MCTP-style convention spec.md's
// examples assume: an 8-byte little-endian sequence number and no padding.
type DefaultSecuredMessageCallbacks struct{}

func (DefaultSecuredMessageCallbacks) SequenceNumber(seq uint64, buf []byte) int {
	binary.LittleEndian.PutUint64(buf, seq)
	return 8
}

func (DefaultSecuredMessageCallbacks) MaxRandomCount() uint32 { return 0 }

// Endpoint bundles the four collaborator functions a requester or
// responder needs to talk to its peer, the shape register_io/
// register_transport installs in spec.md §6.
type Endpoint struct {
	Send    SendFunc
	Receive ReceiveFunc
	Encode  EncodeFunc
	Decode  DecodeFunc
}

// writeFramed frames one message with a 4-byte little-endian length prefix,
// so Pipe's underlying byte stream can be split back into messages.
func writeFramed(w io.Writer, msg []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

func readFramed(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Pipe is an in-memory, full-duplex byte-stream transport connecting two
// endpoints without real network I/O, adapted from the teacher's
// pkg/transport/pipe.go: where the teacher bridges two net.Conn halves
// through pion's packet-oriented test.Bridge to simulate UDP, this module
// needs only a reliable ordered byte stream (SPDM's transport binding is
// responsible for framing, not this package), so Pipe wraps a plain
// io.Pipe pair instead.
type Pipe struct {
	aToB *pipeHalf
	bToA *pipeHalf
}

type pipeHalf struct {
	r *io.PipeReader
	w *io.PipeWriter
}

// NewPipe creates a connected pair of Endpoints' worth of Send/Receive
// functions: side A's Send feeds side B's Receive, and vice versa.
func NewPipe() (a, b *Pipe) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	aToB := &pipeHalf{r: r1, w: w1}
	bToA := &pipeHalf{r: r2, w: w2}
	a = &Pipe{aToB: aToB, bToA: bToA}
	b = &Pipe{aToB: bToA, bToA: aToB}
	return a, b
}

// Send implements SendFunc, ignoring ctx (io.Pipe has no native deadline
// support; callers that need timeouts should race this against ctx.Done()
// in their own wrapper).
func (p *Pipe) Send(_ context.Context, msg []byte) error {
	return writeFramed(p.aToB.w, msg)
}

// Receive implements ReceiveFunc.
func (p *Pipe) Receive(_ context.Context) ([]byte, error) {
	return readFramed(p.bToA.r)
}

// Close closes both directions of the pipe.
func (p *Pipe) Close() error {
	var errs [4]error
	errs[0] = p.aToB.w.Close()
	errs[1] = p.aToB.r.Close()
	errs[2] = p.bToA.w.Close()
	errs[3] = p.bToA.r.Close()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// PassthroughEncode/PassthroughDecode are a trivial EncodeFunc/DecodeFunc
// pair used by tests and cmd/spdm-demo: they prepend/strip a small fixed
// header carrying exactly the fields EncodeFunc/DecodeFunc exchange,
// standing in for a real MCTP or PCI DOE binding without claiming to BE
// one (transport framing is explicitly out of this module's scope).
func PassthroughEncode(sessionID uint32, haveSession bool, isRequester, isApp bool, spdmMsg []byte) ([]byte, error) {
	out := make([]byte, 0, 7+len(spdmMsg))
	out = binary.LittleEndian.AppendUint32(out, sessionID)
	out = append(out, boolByte(haveSession), boolByte(isRequester), boolByte(isApp))
	out = append(out, spdmMsg...)
	return out, nil
}

func PassthroughDecode(transportMsg []byte) (sessionID uint32, haveSession, isRequester, isApp bool, spdmMsg []byte, err error) {
	if len(transportMsg) < 7 {
		return 0, false, false, false, nil, ErrFrameTooShort
	}
	sessionID = binary.LittleEndian.Uint32(transportMsg[0:4])
	haveSession = transportMsg[4] != 0
	isRequester = transportMsg[5] != 0
	isApp = transportMsg[6] != 0
	spdmMsg = transportMsg[7:]
	return sessionID, haveSession, isRequester, isApp, spdmMsg, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
