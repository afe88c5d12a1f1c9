package producer

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/coeus-network/tee-oracle-backend/feed"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// Signer holds the enclave's ephemeral ed25519 signing key. The public half
// is embedded in attestation report data so verifiers can bind it to the
// enclave identity; the private half never leaves the process except through
// a sealed Keystore snapshot.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner generates a fresh signing keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// NewSignerFromSeed reconstructs a signer from a 32-byte seed, as recovered
// from a sealed keystore snapshot.
func NewSignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length %d, want %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// SignPayload signs the canonical encoding of an oracle result payload.
func (s *Signer) SignPayload(p feed.Payload) ([]byte, error) {
	return feed.Sign(s.priv, p)
}

// PublicKey returns the verifying key matching this signer.
func (s *Signer) PublicKey() interfaces.VerifyingKey {
	out := make(interfaces.VerifyingKey, len(s.pub))
	copy(out, s.pub)
	return out
}

// ReportData returns the 64-byte attestation report data for this signer:
// the verifying key in the first 32 bytes, remainder zero.
func (s *Signer) ReportData() [64]byte {
	var data [64]byte
	copy(data[:32], s.pub)
	return data
}

// Seed returns the private key seed for sealing at rest.
func (s *Signer) Seed() []byte {
	return s.priv.Seed()
}
