package session

import (
	"fmt"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

// Keys holds every secret and derived key an SPDM session's key schedule
// produces. The schedule is HKDF-Extract/Expand over the negotiated DHE
// shared secret (or PSK), bound into each stage by the transcript hash of
// the messages exchanged so far (TH1 for the handshake phase, TH2 for the
// data phase) — the same "salt-from-transcript-hash, label-per-purpose"
// structure the teacher's CASE key schedule uses, generalized to SPDM's
// two explicit key tiers.
type Keys struct {
	HandshakeSecret []byte

	RequestHandshakeSecret  []byte
	ResponseHandshakeSecret []byte
	RequestFinishedKey      []byte
	ResponseFinishedKey     []byte

	RequestHandshakeKey   []byte
	RequestHandshakeSalt  []byte
	ResponseHandshakeKey  []byte
	ResponseHandshakeSalt []byte

	MasterSecret []byte

	RequestDataKey  []byte
	RequestDataSalt []byte
	ResponseDataKey  []byte
	ResponseDataSalt []byte
}

const (
	labelDerived            = "derived"
	labelRequestHandshake   = "req hs data"
	labelResponseHandshake  = "rsp hs data"
	labelFinished           = "finished"
	labelRequestData        = "req data"
	labelResponseData       = "rsp data"
	labelKeyUpdate          = "sp update"
)

func expandLabel(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, secret []byte, label string, context []byte, length int) ([]byte, error) {
	info := append([]byte(label), context...)
	return suite.HKDFExpand(algo, secret, info, length)
}

// DeriveHandshakeKeys runs the handshake-phase half of the schedule: from
// the DHE shared secret (or PSK) and TH1 (the hash of MessageK), it
// produces the per-direction finished keys FINISH's verify-data HMACs are
// computed and checked with, and the per-direction handshake traffic
// key/salt pairs that secure FINISH/PSK_FINISH and any other in-handshake
// messages.
func DeriveHandshakeKeys(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, aead spdmcrypto.AEADCipherSuite, sharedSecret, th1 []byte) (*Keys, error) {
	size := algo.Size()
	keySize := aead.KeySize()
	zeroSalt := make([]byte, size)

	handshakeSecret, err := suite.HKDFExtract(algo, zeroSalt, sharedSecret)
	if err != nil {
		return nil, fmt.Errorf("session: derive handshake secret: %w", err)
	}

	reqSecret, err := expandLabel(suite, algo, handshakeSecret, labelRequestHandshake, th1, size)
	if err != nil {
		return nil, err
	}
	rspSecret, err := expandLabel(suite, algo, handshakeSecret, labelResponseHandshake, th1, size)
	if err != nil {
		return nil, err
	}
	reqFinished, err := expandLabel(suite, algo, reqSecret, labelFinished, nil, size)
	if err != nil {
		return nil, err
	}
	rspFinished, err := expandLabel(suite, algo, rspSecret, labelFinished, nil, size)
	if err != nil {
		return nil, err
	}

	k := &Keys{
		HandshakeSecret:         handshakeSecret,
		RequestHandshakeSecret:  reqSecret,
		ResponseHandshakeSecret: rspSecret,
		RequestFinishedKey:      reqFinished,
		ResponseFinishedKey:     rspFinished,
	}
	k.RequestHandshakeKey, err = expandLabel(suite, algo, reqSecret, "key", nil, keySize)
	if err != nil {
		return nil, err
	}
	k.RequestHandshakeSalt, err = expandLabel(suite, algo, reqSecret, "iv", nil, 12)
	if err != nil {
		return nil, err
	}
	k.ResponseHandshakeKey, err = expandLabel(suite, algo, rspSecret, "key", nil, keySize)
	if err != nil {
		return nil, err
	}
	k.ResponseHandshakeSalt, err = expandLabel(suite, algo, rspSecret, "iv", nil, 12)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// DeriveDataKeys runs the data-phase half of the schedule: from the
// handshake secret and TH2 (the hash of MessageK || MessageF), it derives
// the master secret and the per-direction AEAD traffic keys the secured-
// message codec uses once FINISH completes.
func (k *Keys) DeriveDataKeys(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, aead spdmcrypto.AEADCipherSuite, th2 []byte) error {
	size := algo.Size()
	keySize := aead.KeySize()

	derivedSalt, err := expandLabel(suite, algo, k.HandshakeSecret, labelDerived, nil, size)
	if err != nil {
		return err
	}
	masterSecret, err := suite.HKDFExtract(algo, derivedSalt, make([]byte, size))
	if err != nil {
		return fmt.Errorf("session: derive master secret: %w", err)
	}

	reqDataSecret, err := expandLabel(suite, algo, masterSecret, labelRequestData, th2, size)
	if err != nil {
		return err
	}
	rspDataSecret, err := expandLabel(suite, algo, masterSecret, labelResponseData, th2, size)
	if err != nil {
		return err
	}

	k.MasterSecret = masterSecret
	k.RequestDataKey, err = expandLabel(suite, algo, reqDataSecret, "key", nil, keySize)
	if err != nil {
		return err
	}
	k.RequestDataSalt, err = expandLabel(suite, algo, reqDataSecret, "iv", nil, 12)
	if err != nil {
		return err
	}
	k.ResponseDataKey, err = expandLabel(suite, algo, rspDataSecret, "key", nil, keySize)
	if err != nil {
		return err
	}
	k.ResponseDataSalt, err = expandLabel(suite, algo, rspDataSecret, "iv", nil, 12)
	if err != nil {
		return err
	}
	return nil
}

// UpdateKey re-derives the data key for one direction in place, the way a
// KEY_UPDATE request/ack pair rotates traffic keys without re-running the
// full handshake.
func UpdateKey(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, aead spdmcrypto.AEADCipherSuite, currentKey []byte) ([]byte, error) {
	return expandLabel(suite, algo, currentKey, labelKeyUpdate, nil, aead.KeySize())
}
