package spdmcrypto

// BaseHashAlgo identifies the hash algorithm negotiated in
// NEGOTIATE_ALGORITHMS, mirroring SPDM_DEVICE_ALGORITHM.BaseHashAlgo.
type BaseHashAlgo uint32

// Hash algorithm bit values, per the DMTF SPDM algorithm registry.
const (
	HashSHA256 BaseHashAlgo = 1 << 0
	HashSHA384 BaseHashAlgo = 1 << 1
	HashSHA512 BaseHashAlgo = 1 << 2
	HashSHA3_256 BaseHashAlgo = 1 << 3
	HashSHA3_384 BaseHashAlgo = 1 << 4
	HashSHA3_512 BaseHashAlgo = 1 << 5
)

// Size returns the digest size in bytes for the algorithm, or 0 if unknown.
func (a BaseHashAlgo) Size() int {
	switch a {
	case HashSHA256, HashSHA3_256:
		return 32
	case HashSHA384, HashSHA3_384:
		return 48
	case HashSHA512, HashSHA3_512:
		return 64
	default:
		return 0
	}
}

// BaseAsymAlgo identifies the asymmetric signing algorithm negotiated in
// NEGOTIATE_ALGORITHMS, mirroring SPDM_DEVICE_ALGORITHM.BaseAsymAlgo.
type BaseAsymAlgo uint32

// Asymmetric algorithm bit values.
const (
	AsymECDSA_P256     BaseAsymAlgo = 1 << 0
	AsymECDSA_P384     BaseAsymAlgo = 1 << 1
	AsymRSASSA_2048    BaseAsymAlgo = 1 << 2
	AsymRSASSA_3072    BaseAsymAlgo = 1 << 3
	AsymEdDSA_Ed25519  BaseAsymAlgo = 1 << 4
)

// SignatureSize returns the fixed-width signature size in bytes for the
// algorithm, or 0 if unknown.
func (a BaseAsymAlgo) SignatureSize() int {
	switch a {
	case AsymECDSA_P256:
		return 64
	case AsymECDSA_P384:
		return 96
	case AsymRSASSA_2048:
		return 256
	case AsymRSASSA_3072:
		return 384
	case AsymEdDSA_Ed25519:
		return 64
	default:
		return 0
	}
}

// DHENamedGroup identifies the Diffie-Hellman group used by KEY_EXCHANGE,
// mirroring SPDM_DEVICE_ALGORITHM.DHENamedGroup.
type DHENamedGroup uint16

// DHE named groups.
const (
	DHESecp256r1 DHENamedGroup = 1 << 0
	DHESecp384r1 DHENamedGroup = 1 << 1
)

// AEADCipherSuite identifies the secured-message AEAD algorithm negotiated
// in NEGOTIATE_ALGORITHMS, mirroring SPDM_DEVICE_ALGORITHM.AEADCipherSuite.
type AEADCipherSuite uint16

// AEAD cipher suites.
const (
	AEAD_AES_128_GCM       AEADCipherSuite = 1 << 0
	AEAD_AES_256_GCM       AEADCipherSuite = 1 << 1
	AEAD_CHACHA20_POLY1305 AEADCipherSuite = 1 << 2
)

// KeySize returns the symmetric key size in bytes for the suite.
func (s AEADCipherSuite) KeySize() int {
	switch s {
	case AEAD_AES_128_GCM:
		return 16
	case AEAD_AES_256_GCM, AEAD_CHACHA20_POLY1305:
		return 32
	default:
		return 0
	}
}

// TagSize returns the authentication tag size in bytes for the suite.
// Both GCM and ChaCha20-Poly1305 carry a 16-byte tag.
func (s AEADCipherSuite) TagSize() int {
	switch s {
	case AEAD_AES_128_GCM, AEAD_AES_256_GCM, AEAD_CHACHA20_POLY1305:
		return 16
	default:
		return 0
	}
}

// MeasurementHashAlgo identifies the algorithm used to hash measurement
// records, mirroring SPDM_DEVICE_ALGORITHM.MeasurementHashAlgo. It shares
// its bit values with BaseHashAlgo plus a "raw bit stream" sentinel.
type MeasurementHashAlgo uint32

// Measurement hash algorithm bit values.
const (
	MeasurementHashRawBitStream MeasurementHashAlgo = 1 << 0
	MeasurementHashSHA256       MeasurementHashAlgo = 1 << 1
	MeasurementHashSHA384       MeasurementHashAlgo = 1 << 2
	MeasurementHashSHA512       MeasurementHashAlgo = 1 << 3
)

// Size returns the digest size in bytes for the algorithm, or 0 for
// MeasurementHashRawBitStream (which carries the raw measurement bytes
// instead of a digest) or an unknown value.
func (a MeasurementHashAlgo) Size() int {
	switch a {
	case MeasurementHashSHA256:
		return 32
	case MeasurementHashSHA384:
		return 48
	case MeasurementHashSHA512:
		return 64
	default:
		return 0
	}
}

// KeyScheduleAlgo identifies the key derivation scheme used during session
// establishment, mirroring SPDM_DEVICE_ALGORITHM.KeySchedule. SPDM 1.1
// defines exactly one.
type KeyScheduleAlgo uint16

// KeyScheduleAlgo values.
const (
	KeyScheduleSPDM KeyScheduleAlgo = 1 << 0
)
