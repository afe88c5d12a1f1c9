// Package attestor binds expected enclave measurement sets to identities and
// validates attestation documents against them. It is the trust-establishment
// half of the protocol: a feed update is only as trustworthy as the identity
// whose key was bound here.
package attestor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// EnclaveIdentity binds an expected measurement set to a verifying key.
// The measurement set is immutable once registered; the key is bound
// write-once by the first successful attestation verification.
type EnclaveIdentity struct {
	measurements interfaces.MeasurementSet
	verifyingKey interfaces.VerifyingKey
	createdBy    interfaces.Principal
}

// MeasurementSet returns the registered expected measurements.
func (id *EnclaveIdentity) MeasurementSet() interfaces.MeasurementSet {
	return id.measurements.Clone()
}

// VerifyingKey returns the bound key, or nil before the first successful
// verification.
func (id *EnclaveIdentity) VerifyingKey() interfaces.VerifyingKey {
	return id.verifyingKey
}

// CreatedBy returns the principal that registered the identity.
func (id *EnclaveIdentity) CreatedBy() interfaces.Principal {
	return id.createdBy
}

// Bound reports whether a verifying key has been established.
func (id *EnclaveIdentity) Bound() bool {
	return len(id.verifyingKey) > 0
}

// Registry creates enclave identities and validates attestations against
// them. Registration is admin-gated; verification is open, since a document
// that matches the registered measurements is self-authorizing.
type Registry struct {
	admin    interfaces.Principal
	verifier DocumentVerifier
}

// NewRegistry creates a registry owned by admin, delegating document
// validation to the given platform primitive.
func NewRegistry(admin interfaces.Principal, verifier DocumentVerifier) *Registry {
	return &Registry{admin: admin, verifier: verifier}
}

// Register stores an expected measurement set verbatim and returns the new
// identity. The set's content is not validated; it is the ground truth
// against which future attestations are checked. Only the admin may
// register.
func (r *Registry) Register(caller interfaces.Principal, measurements interfaces.MeasurementSet) (*EnclaveIdentity, error) {
	if !caller.Equal(r.admin) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotAdmin, caller)
	}

	return &EnclaveIdentity{
		measurements: measurements.Clone(),
		createdBy:    caller,
	}, nil
}

// Verify validates an attestation document against an identity and returns
// the verifying key it binds.
//
// The document is first handed to the platform primitive for structural and
// chain-of-trust validation; its failures surface as
// ErrInvalidAttestationDocument. The extracted measurement sequence is then
// compared positionally and exactly against the registered set; any single
// differing byte rejects the whole attestation with ErrInvalidMeasurement.
//
// The key binding is write-once. A later document that passes the
// measurement check but carries a different key contradicts the established
// binding and is rejected.
func (r *Registry) Verify(identity *EnclaveIdentity, doc interfaces.Attestation) (interfaces.VerifyingKey, error) {
	report, err := r.verifier.Verify(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidAttestationDocument, err)
	}

	if !measurementsEqual(identity.measurements, report.Measurements) {
		return nil, fmt.Errorf("%w: document registers do not match registered set", interfaces.ErrInvalidMeasurement)
	}

	if !report.PublicKey.Valid() {
		return nil, fmt.Errorf("%w: embedded key is not a valid verifying key", interfaces.ErrInvalidAttestationDocument)
	}

	if identity.Bound() {
		if !identity.verifyingKey.Equal(report.PublicKey) {
			return nil, fmt.Errorf("%w: document key contradicts established binding", interfaces.ErrInvalidAttestationDocument)
		}
		return identity.verifyingKey, nil
	}

	identity.verifyingKey = report.PublicKey
	return identity.verifyingKey, nil
}

// ComputeIdentityHash calculates a stable 32-byte identifier for a
// measurement set, hashing the abi-packed register sequence.
func ComputeIdentityHash(measurements interfaces.MeasurementSet) ([32]byte, error) {
	bytesTy, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return [32]byte{}, err
	}
	arguments := abi.Arguments{{Type: bytesTy}}

	packed := make([]byte, 0, len(measurements)*interfaces.MeasurementSize)
	for _, m := range measurements {
		packed = append(packed, m[:]...)
	}

	encoded, err := arguments.Pack(packed)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}
