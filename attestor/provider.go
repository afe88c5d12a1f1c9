package attestor

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"

	tdx_client "github.com/google/go-tdx-guest/client"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// AttestationProvider produces an attestation document binding 64 bytes of
// report data (the enclave's verifying key plus padding) to the current
// platform state.
type AttestationProvider interface {
	Attest(reportData [64]byte) (interfaces.Attestation, error)
}

// DCAPProvider obtains raw TDX quotes from the local platform.
type DCAPProvider struct{}

// Attest fetches a raw quote over the configfs interface when available,
// falling back to the legacy quote device.
func (DCAPProvider) Attest(reportData [64]byte) (interfaces.Attestation, error) {
	qp := &tdx_client.LinuxConfigFsQuoteProvider{}
	if qp.IsSupported() == nil {
		return qp.GetRawQuote(reportData)
	}

	qd, err := tdx_client.OpenDevice()
	if err != nil {
		return nil, err
	}
	defer qd.Close()

	return tdx_client.GetRawQuote(qd, reportData)
}

// RemoteProvider fetches attestation documents from an enclave's attestation
// endpoint, for drivers running outside the enclave.
type RemoteProvider struct {
	Address string
}

// Attest requests a quote over the report data from the remote endpoint.
func (p *RemoteProvider) Attest(reportData [64]byte) (interfaces.Attestation, error) {
	url := fmt.Sprintf("%s/attest/%s", p.Address, hex.EncodeToString(reportData[:]))
	resp, err := http.DefaultClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}
	return rawQuote, nil
}

// StaticProvider emits a placeholder document, for development outside any
// TEE. Pair it with a StaticVerifier that was taught the same document.
type StaticProvider struct{}

// Attest returns a deterministic placeholder quote over the report data.
func (StaticProvider) Attest(reportData [64]byte) (interfaces.Attestation, error) {
	return []byte(fmt.Sprintf("static attestation over %x", reportData)), nil
}
