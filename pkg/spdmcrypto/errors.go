package spdmcrypto

import "errors"

// Errors returned by this package.
var (
	// ErrUnsupportedAlgorithm is returned when a Suite is asked to operate
	// with a hash, AEAD, or asymmetric algorithm it does not implement.
	ErrUnsupportedAlgorithm = errors.New("spdmcrypto: unsupported algorithm")

	// ErrVerifyFailed is returned when a signature, HMAC, or AEAD tag does
	// not match.
	ErrVerifyFailed = errors.New("spdmcrypto: verification failed")

	// ErrInvalidKeySize is returned when a key or digest does not match
	// the size the selected algorithm requires.
	ErrInvalidKeySize = errors.New("spdmcrypto: invalid key or digest size")

	// ErrEmptyChain is returned when an X.509 chain operation is given no
	// certificates to work with.
	ErrEmptyChain = errors.New("spdmcrypto: empty certificate chain")
)
