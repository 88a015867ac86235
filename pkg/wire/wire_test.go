package wire

import (
	"bytes"
	"testing"

	"github.com/openspdm/spdm-go/pkg/spdmcrypto"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{SPDMVersion: 0x11, Code: CodeGetVersion, Param1: 1, Param2: 2}
	enc := h.Encode(nil)
	got, rest, err := DecodeHeader(enc)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("DecodeHeader() = %+v, want %+v", got, h)
	}
	if len(rest) != 0 {
		t.Fatalf("len(rest) = %d, want 0", len(rest))
	}
}

func TestHeaderTruncated(t *testing.T) {
	if _, _, err := DecodeHeader([]byte{0x11, 0x12}); err != ErrTruncated {
		t.Fatalf("DecodeHeader() err = %v, want ErrTruncated", err)
	}
}

func TestVersionRoundTrip(t *testing.T) {
	v := Version{
		Header: Header{SPDMVersion: 0x10},
		Versions: []VersionEntry{
			{MajorMinor: 0x10, UpdateVersionNumber: 0},
			{MajorMinor: 0x11, UpdateVersionNumber: 0},
		},
	}
	dec, err := DecodeVersion(v.Encode())
	if err != nil {
		t.Fatalf("DecodeVersion: %v", err)
	}
	if len(dec.Versions) != 2 || dec.Versions[1].MajorMinor != 0x11 {
		t.Fatalf("DecodeVersion() = %+v", dec)
	}
}

func TestDigestsRoundTrip(t *testing.T) {
	d := Digests{
		Header:  Header{SPDMVersion: 0x11},
		Digests: [][]byte{bytes.Repeat([]byte{0xAA}, 32), bytes.Repeat([]byte{0xBB}, 32)},
	}
	dec, err := DecodeDigests(d.Encode(), 32)
	if err != nil {
		t.Fatalf("DecodeDigests: %v", err)
	}
	if len(dec.Digests) != 2 || !bytes.Equal(dec.Digests[0], d.Digests[0]) {
		t.Fatalf("DecodeDigests() = %+v", dec)
	}
}

func TestChallengeAuthRoundTrip(t *testing.T) {
	ca := ChallengeAuth{
		Header:                 Header{SPDMVersion: 0x11},
		CertChainHash:          bytes.Repeat([]byte{0x01}, 32),
		MeasurementSummaryHash: nil,
		OpaqueData:             []byte("opaque"),
		Signature:              bytes.Repeat([]byte{0x02}, 64),
	}
	dec, err := DecodeChallengeAuth(ca.Encode(), 32, 0, 64)
	if err != nil {
		t.Fatalf("DecodeChallengeAuth: %v", err)
	}
	if !bytes.Equal(dec.Signature, ca.Signature) {
		t.Fatalf("Signature mismatch")
	}
	if !bytes.Equal(dec.OpaqueData, ca.OpaqueData) {
		t.Fatalf("OpaqueData mismatch")
	}
}

func TestChallengeAuthTruncated(t *testing.T) {
	ca := ChallengeAuth{Header: Header{SPDMVersion: 0x11}, CertChainHash: bytes.Repeat([]byte{0x01}, 32)}
	enc := ca.Encode()
	if _, err := DecodeChallengeAuth(enc[:len(enc)-5], 32, 0, 64); err != ErrTruncated {
		t.Fatalf("DecodeChallengeAuth() err = %v, want ErrTruncated", err)
	}
}

func TestKeyExchangeRoundTrip(t *testing.T) {
	ke := KeyExchange{
		Header:       Header{SPDMVersion: 0x11},
		ExchangeData: bytes.Repeat([]byte{0x03}, 65),
		OpaqueData:   []byte("opaque"),
	}
	dec, err := DecodeKeyExchange(ke.Encode())
	if err != nil {
		t.Fatalf("DecodeKeyExchange: %v", err)
	}
	if !bytes.Equal(dec.ExchangeData, ke.ExchangeData) {
		t.Fatalf("ExchangeData mismatch")
	}
}

func TestAlgorithmsRoundTrip(t *testing.T) {
	a := Algorithms{
		Header:      Header{SPDMVersion: 0x11},
		BaseHashSel: spdmcrypto.HashSHA256,
		BaseAsymSel: spdmcrypto.AsymECDSA_P256,
	}
	dec, err := DecodeAlgorithms(a.Encode())
	if err != nil {
		t.Fatalf("DecodeAlgorithms: %v", err)
	}
	if dec.BaseHashSel != spdmcrypto.HashSHA256 || dec.BaseAsymSel != spdmcrypto.AsymECDSA_P256 {
		t.Fatalf("DecodeAlgorithms() = %+v", dec)
	}
}

func TestOpaqueTableRoundTrip(t *testing.T) {
	enc := OpaqueSupportedVersions(SecuredMessageVersion11, SecuredMessageVersion10)
	table, err := DecodeOpaqueTable(enc)
	if err != nil {
		t.Fatalf("DecodeOpaqueTable: %v", err)
	}
	if len(table.Elements) != 1 {
		t.Fatalf("len(Elements) = %d, want 1", len(table.Elements))
	}
	e := table.Elements[0]
	if e.RegistryID != OpaqueRegistryDMTF || e.SMDataID != SMDataSupportedVersion {
		t.Fatalf("element = %+v, want DMTF supported-version", e)
	}

	selected, ok := SelectOpaqueVersion(table, []uint16{SecuredMessageVersion10, SecuredMessageVersion11})
	if !ok || selected != SecuredMessageVersion11 {
		t.Fatalf("SelectOpaqueVersion() = %#x, %v; want %#x, true", selected, ok, SecuredMessageVersion11)
	}

	if _, ok := SelectOpaqueVersion(table, []uint16{0x2000}); ok {
		t.Fatalf("SelectOpaqueVersion() with no common version reported ok")
	}
}

func TestOpaqueVersionSelectionRoundTrip(t *testing.T) {
	table, err := DecodeOpaqueTable(OpaqueVersionSelection(SecuredMessageVersion10))
	if err != nil {
		t.Fatalf("DecodeOpaqueTable: %v", err)
	}
	if len(table.Elements) != 1 || table.Elements[0].SMDataID != SMDataVersionSelection {
		t.Fatalf("table = %+v, want one version-selection element", table)
	}
	if !bytes.Equal(table.Elements[0].Data, []byte{0x00, 0x10}) {
		t.Fatalf("selection data = %x, want 0010", table.Elements[0].Data)
	}
}

func TestDecodeOpaqueTableRejectsUnknownSpecID(t *testing.T) {
	bad := []byte{'X', 'X', 'X', 'X', 0x01, 0x00}
	if _, err := DecodeOpaqueTable(bad); err != ErrUnknownOpaqueFormat {
		t.Fatalf("DecodeOpaqueTable() err = %v, want ErrUnknownOpaqueFormat", err)
	}
}

func TestEncapsulatedEnvelopeRoundTrip(t *testing.T) {
	nested := GetDigests{Header: Header{SPDMVersion: 0x11}}.Encode()
	env := EncapsulatedRequest{Header: Header{SPDMVersion: 0x11}, RequestID: 3, Payload: nested}
	dec, err := DecodeEncapsulatedRequest(env.Encode())
	if err != nil {
		t.Fatalf("DecodeEncapsulatedRequest: %v", err)
	}
	if dec.RequestID != 3 || !bytes.Equal(dec.Payload, nested) {
		t.Fatalf("DecodeEncapsulatedRequest() = %+v", dec)
	}

	ack := EncapsulatedResponseAck{Header: Header{SPDMVersion: 0x11}, RequestID: 4, Done: false, Payload: nested}
	decAck, err := DecodeEncapsulatedResponseAck(ack.Encode())
	if err != nil {
		t.Fatalf("DecodeEncapsulatedResponseAck: %v", err)
	}
	if decAck.Done || decAck.RequestID != 4 || !bytes.Equal(decAck.Payload, nested) {
		t.Fatalf("DecodeEncapsulatedResponseAck() = %+v", decAck)
	}

	doneAck := EncapsulatedResponseAck{Header: Header{SPDMVersion: 0x11}, RequestID: 4, Done: true}
	decDone, err := DecodeEncapsulatedResponseAck(doneAck.Encode())
	if err != nil {
		t.Fatalf("DecodeEncapsulatedResponseAck(done): %v", err)
	}
	if !decDone.Done {
		t.Fatalf("Done = false, want true")
	}
}
