// Package wire implements the little-endian SPDM message encoding: fixed
// header plus per-verb body layout, per the DMTF SPDM binding.
package wire

// Code identifies a request or response message (the header's
// RequestResponseCode field).
type Code uint8

// SPDM request/response codes. Requests have the high bit set in the real
// wire encoding reserved range; here they're listed as the DMTF registry
// defines them.
const (
	CodeDigests                 Code = 0x01
	CodeCertificate             Code = 0x02
	CodeChallengeAuth           Code = 0x03
	CodeVersion                 Code = 0x04
	CodeMeasurements            Code = 0x60
	CodeCapabilities            Code = 0x61
	CodeAlgorithms              Code = 0x63
	CodeKeyExchangeRsp          Code = 0x64
	CodeFinishRsp               Code = 0x65
	CodePSKExchangeRsp          Code = 0x66
	CodePSKFinishRsp            Code = 0x67
	CodeKeyUpdateAck            Code = 0x69
	CodeEncapsulatedRequest     Code = 0x6A
	CodeEncapsulatedResponseAck Code = 0x6B
	CodeEndSessionAck           Code = 0x6C
	CodeError                   Code = 0x7F

	CodeGetDigests                  Code = 0x81
	CodeGetCertificate              Code = 0x82
	CodeChallenge                   Code = 0x83
	CodeGetVersion                  Code = 0x84
	CodeGetMeasurements             Code = 0xE0
	CodeGetCapabilities             Code = 0xE1
	CodeNegotiateAlgorithms         Code = 0xE3
	CodeKeyExchange                 Code = 0xE4
	CodeFinish                      Code = 0xE5
	CodePSKExchange                 Code = 0xE6
	CodePSKFinish                   Code = 0xE7
	CodeKeyUpdate                   Code = 0xE9
	CodeGetEncapsulatedRequest      Code = 0xEA
	CodeDeliverEncapsulatedResponse Code = 0xEB
	CodeEndSession                  Code = 0xEC
	CodeRespondIfReady              Code = 0xFF
)

// ChallengeAuthBasicMutAuthReq is the bit in CHALLENGE_AUTH's Param1
// (ResponderAuthAttribs) asking the requester to authenticate itself via
// the encapsulated sub-dialogue once the challenge completes. The low
// nibble of Param1 carries the slot id the responder signed with.
const ChallengeAuthBasicMutAuthReq uint8 = 0x80

// MutAuthRequested values carried in KEY_EXCHANGE_RSP, telling the
// requester whether (and how) to authenticate itself before FINISH.
const (
	MutAuthRequestedNone          uint8 = 0
	MutAuthRequestedNoEncap       uint8 = 1
	MutAuthRequestedWithEncap     uint8 = 2
	MutAuthRequestedImplicit      uint8 = 4
)

// ErrorCode values carried in the ERROR message's Param1 field.
type ErrorCode uint8

// SPDM error codes.
const (
	ErrorInvalidRequest        ErrorCode = 0x01
	ErrorInvalidSession        ErrorCode = 0x02
	ErrorBusy                  ErrorCode = 0x03
	ErrorUnexpectedRequest     ErrorCode = 0x04
	ErrorUnspecified           ErrorCode = 0x05
	ErrorDecryptError          ErrorCode = 0x06
	ErrorUnsupportedRequest    ErrorCode = 0x07
	ErrorRequestInFlight       ErrorCode = 0x08
	ErrorInvalidResponseCode   ErrorCode = 0x09
	ErrorSessionLimitExceeded  ErrorCode = 0x0A
	ErrorSessionRequired       ErrorCode = 0x0B
	ErrorResetRequired         ErrorCode = 0x0C
	ErrorResponseNotReady      ErrorCode = 0x42
	ErrorRequestResynch        ErrorCode = 0x43
	ErrorVersionMismatch       ErrorCode = 0x41
)

// MeasurementSummaryHashType identifies what CHALLENGE and KEY_EXCHANGE
// request be summarized into the MeasurementSummaryHash field.
type MeasurementSummaryHashType uint8

// Measurement summary hash types.
const (
	MeasurementSummaryNone MeasurementSummaryHashType = 0
	MeasurementSummaryTCB  MeasurementSummaryHashType = 1
	MeasurementSummaryAll  MeasurementSummaryHashType = 0xFF
)

// SlotNone is the reserved "no slot" slot-id value (0xFF): a CHALLENGE
// naming it authenticates against a locally provisioned chain instead of
// one retrieved with GET_CERTIFICATE.
const SlotNone uint8 = 0xFF
