package session

import (
	"encoding/binary"
	"io"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

// SequenceCallbacks supplies the two transport-specific knobs the codec
// cannot decide on its own: how many bytes of the sequence number appear
// in the record header, and how much random padding a record may carry.
// transport.SecuredMessageCallbacks satisfies this interface; it is
// redeclared here so the session layer does not depend on the transport
// package.
type SequenceCallbacks interface {
	// SequenceNumber encodes seq into buf per the transport binding's
	// convention, returning the number of bytes written (0..8).
	SequenceNumber(seq uint64, buf []byte) int

	// MaxRandomCount returns the maximum padding length a secured record
	// may carry under this transport binding.
	MaxRandomCount() uint32
}

// defaultCallbacks is the MCTP-style convention used when a host injects
// nothing: a full 8-byte little-endian sequence number and no padding.
type defaultCallbacks struct{}

func (defaultCallbacks) SequenceNumber(seq uint64, buf []byte) int {
	binary.LittleEndian.PutUint64(buf, seq)
	return 8
}

func (defaultCallbacks) MaxRandomCount() uint32 { return 0 }

// Codec seals and opens one direction's secured-message traffic: a fixed
// AEAD key and salt, plus the sequence number that gets folded into both
// the nonce and the additional authenticated data on every record.
type Codec struct {
	suite     spdmcrypto.Suite
	aeadSuite spdmcrypto.AEADCipherSuite
	key       []byte
	salt      []byte // 12-byte base IV; XORed with the sequence number per message
	seq       uint64
	callbacks SequenceCallbacks
}

// NewCodec constructs a Codec for one traffic direction, using the
// default 8-byte sequence encoding and no padding until SetCallbacks
// installs a transport's own convention.
func NewCodec(suite spdmcrypto.Suite, aeadSuite spdmcrypto.AEADCipherSuite, key, salt []byte) *Codec {
	return &Codec{suite: suite, aeadSuite: aeadSuite, key: key, salt: salt, callbacks: defaultCallbacks{}}
}

// SetCallbacks installs the transport binding's sequence-number encoding
// and padding limits. Both directions of a session must use the same
// callbacks, and they must match the peer's.
func (c *Codec) SetCallbacks(cb SequenceCallbacks) {
	if cb != nil {
		c.callbacks = cb
	}
}

func (c *Codec) nonce(seq uint64) []byte {
	nonce := make([]byte, len(c.salt))
	copy(nonce, c.salt)
	var seqBytes [8]byte
	binary.LittleEndian.PutUint64(seqBytes[:], seq)
	for i := 0; i < 8 && i < len(nonce); i++ {
		nonce[len(nonce)-8+i] ^= seqBytes[i]
	}
	return nonce
}

// header builds session_id || sequence_number_encoded || length, the
// record header that doubles as the AEAD additional authenticated data.
func (c *Codec) header(sessionID uint32, seq uint64, length uint16) []byte {
	var seqBuf [8]byte
	n := c.callbacks.SequenceNumber(seq, seqBuf[:])
	out := make([]byte, 0, 4+n+2)
	out = binary.LittleEndian.AppendUint32(out, sessionID)
	out = append(out, seqBuf[:n]...)
	return binary.LittleEndian.AppendUint16(out, length)
}

func (c *Codec) headerLen() int {
	var seqBuf [8]byte
	return 4 + c.callbacks.SequenceNumber(0, seqBuf[:]) + 2
}

// Seal encrypts plaintext under the current sequence number and advances
// it. The sealed record is header || AEAD(application_length ||
// plaintext || random_pad); the header is authenticated but not
// encrypted.
func (c *Codec) Seal(sessionID uint32, plaintext []byte) ([]byte, error) {
	var padLen int
	if max := c.callbacks.MaxRandomCount(); max > 0 {
		var b [1]byte
		if _, err := io.ReadFull(c.suite.Random(), b[:]); err != nil {
			return nil, err
		}
		padLen = int(uint32(b[0]) % (max + 1))
	}

	inner := make([]byte, 0, 2+len(plaintext)+padLen)
	inner = binary.LittleEndian.AppendUint16(inner, uint16(len(plaintext)))
	inner = append(inner, plaintext...)
	if padLen > 0 {
		pad := make([]byte, padLen)
		if _, err := io.ReadFull(c.suite.Random(), pad); err != nil {
			return nil, err
		}
		inner = append(inner, pad...)
	}

	length := uint16(len(inner) + c.aeadSuite.TagSize())
	header := c.header(sessionID, c.seq, length)
	ciphertext, err := c.suite.AEADSeal(c.aeadSuite, c.key, c.nonce(c.seq), header, inner)
	if err != nil {
		return nil, err
	}
	out := append(header, ciphertext...)
	if err := c.advance(); err != nil {
		return nil, err
	}
	return out, nil
}

// Open authenticates and decrypts a secured record built by Seal,
// enforcing strictly increasing sequence numbers to reject replays.
func (c *Codec) Open(sessionID uint32, data []byte) ([]byte, error) {
	headerLen := c.headerLen()
	if len(data) < headerLen {
		return nil, ErrDecryptFailed
	}
	header := data[:headerLen]
	ciphertext := data[headerLen:]

	if binary.LittleEndian.Uint32(header[0:4]) != sessionID {
		return nil, ErrDecryptFailed
	}

	// With a full-width sequence encoding the replay check is explicit;
	// a truncated encoding leaves it to the AAD mismatch below, since
	// the receiver cannot reconstruct the sender's counter from the
	// header alone.
	seq := c.seq
	if headerLen == 4+8+2 {
		gotSeq := binary.LittleEndian.Uint64(header[4:12])
		if gotSeq < c.seq {
			return nil, ErrReplay
		}
		seq = gotSeq
	}

	inner, err := c.suite.AEADOpen(c.aeadSuite, c.key, c.nonce(seq), header, ciphertext)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	if len(inner) < 2 {
		return nil, ErrDecryptFailed
	}
	appLen := int(binary.LittleEndian.Uint16(inner[0:2]))
	if 2+appLen > len(inner) {
		return nil, ErrDecryptFailed
	}

	c.seq = seq
	if err := c.advance(); err != nil {
		return nil, err
	}
	return inner[2 : 2+appLen], nil
}

func (c *Codec) advance() error {
	if c.seq == ^uint64(0) {
		return ErrSequenceExhausted
	}
	c.seq++
	return nil
}

// Rekey replaces the traffic key in place, resetting the sequence number,
// the way KEY_UPDATE rotates keys mid-session.
func (c *Codec) Rekey(newKey []byte) {
	c.key = newKey
	c.seq = 0
}
