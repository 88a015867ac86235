package establish

import (
	"crypto/hmac"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

// computeVerifyData HMACs the transcript hash th with finishedKey, the way
// FINISH and PSK_FINISH bind their verify-data field to everything
// exchanged so far in the session establishment.
func computeVerifyData(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, finishedKey, th []byte) ([]byte, error) {
	return suite.HMACAll(algo, finishedKey, th)
}

func checkVerifyData(suite spdmcrypto.Suite, algo spdmcrypto.BaseHashAlgo, finishedKey, th, candidate []byte) error {
	want, err := computeVerifyData(suite, algo, finishedKey, th)
	if err != nil {
		return err
	}
	if !hmac.Equal(want, candidate) {
		return ErrVerifyDataMismatch
	}
	return nil
}
