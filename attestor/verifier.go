package attestor

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	tdx_abi "github.com/google/go-tdx-guest/abi"
	tdx_pb "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/verify"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// AttestationReport is the output of the trusted platform primitive: the
// document's embedded measurement sequence, in register order, and the
// public key the enclave bound into its report data.
type AttestationReport struct {
	Measurements interfaces.MeasurementSet
	PublicKey    interfaces.VerifyingKey
}

// DocumentVerifier is the trusted platform primitive boundary. It validates
// an attestation document structurally and checks its chain of trust, then
// extracts the measurement sequence and embedded key. This package never
// reimplements that validation; it only consumes the output.
type DocumentVerifier interface {
	Verify(doc interfaces.Attestation) (*AttestationReport, error)
}

// DCAPVerifier validates TDX DCAP quotes using the platform verification
// library.
type DCAPVerifier struct{}

// Verify parses and verifies a raw TDX quote, returning the measurement
// registers (MRTD followed by RTMR0..RTMR3) and the Ed25519 key carried in
// the first 32 bytes of the quote's report data.
func (DCAPVerifier) Verify(doc interfaces.Attestation) (*AttestationReport, error) {
	protoQuote, err := tdx_abi.QuoteToProto(doc)
	if err != nil {
		return nil, fmt.Errorf("could not parse quote: %w", err)
	}

	v4Quote, ok := protoQuote.(*tdx_pb.QuoteV4)
	if !ok {
		return nil, fmt.Errorf("unsupported quote type: %T", protoQuote)
	}

	if err := verify.TdxQuote(protoQuote, verify.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("quote verification failed: %w", err)
	}

	body := v4Quote.TdQuoteBody
	registers := [][]byte{body.MrTd, body.Rtmrs[0], body.Rtmrs[1], body.Rtmrs[2], body.Rtmrs[3]}

	measurements := make(interfaces.MeasurementSet, 0, len(registers))
	for i, reg := range registers {
		m, err := interfaces.NewMeasurementFromBytes(reg)
		if err != nil {
			return nil, fmt.Errorf("register %d: %w", i, err)
		}
		measurements = append(measurements, m)
	}

	if len(body.ReportData) < ed25519.PublicKeySize {
		return nil, fmt.Errorf("report data too short for embedded key: %d bytes", len(body.ReportData))
	}
	key := make(interfaces.VerifyingKey, ed25519.PublicKeySize)
	copy(key, body.ReportData[:ed25519.PublicKeySize])

	return &AttestationReport{Measurements: measurements, PublicKey: key}, nil
}

// StaticVerifier resolves documents against a fixed table, for development
// and tests. Documents are matched by content hash.
type StaticVerifier struct {
	reports map[[32]byte]*AttestationReport
}

// NewStaticVerifier creates an empty static verifier.
func NewStaticVerifier() *StaticVerifier {
	return &StaticVerifier{reports: make(map[[32]byte]*AttestationReport)}
}

// Add registers the report the verifier should return for a document.
func (v *StaticVerifier) Add(doc interfaces.Attestation, report *AttestationReport) {
	v.reports[sha256.Sum256(doc)] = report
}

// Verify returns the pre-registered report for the document, or an error
// for unknown documents.
func (v *StaticVerifier) Verify(doc interfaces.Attestation) (*AttestationReport, error) {
	digest := sha256.Sum256(doc)
	report, ok := v.reports[digest]
	if !ok {
		return nil, fmt.Errorf("unknown attestation document %x", digest[:8])
	}
	return report, nil
}

// measurementsEqual compares two measurement sequences positionally.
// Exported behavior relies on every position matching exactly.
func measurementsEqual(a, b interfaces.MeasurementSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i][:], b[i][:]) {
			return false
		}
	}
	return true
}
