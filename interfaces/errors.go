package interfaces

import "errors"

// Protocol errors. Every check failure aborts the enclosing operation with
// no partial state change; none of these are retryable by the core itself.
var (
	// ErrNotAdmin is returned when a config or registry mutation is
	// attempted by a principal other than the stored admin.
	ErrNotAdmin = errors.New("caller is not the admin")

	// ErrInvalidMeasurement is returned when an attestation document's
	// measurement sequence does not match the registered set at every
	// position.
	ErrInvalidMeasurement = errors.New("measurement mismatch")

	// ErrInvalidAttestationDocument is returned when the platform primitive
	// rejects a document, or when a document contradicts an established key
	// binding.
	ErrInvalidAttestationDocument = errors.New("invalid attestation document")

	// ErrInvalidPublicationToken is returned when a publication token does
	// not belong to the feed being published or was already consumed.
	ErrInvalidPublicationToken = errors.New("invalid publication token")

	// ErrStaleResult is returned when a payload's timestamp is older than
	// the configured staleness window allows.
	ErrStaleResult = errors.New("result is stale")

	// ErrTooEarly is returned when a submission arrives before the feed's
	// earliest-update timestamp.
	ErrTooEarly = errors.New("update not yet allowed")

	// ErrMissingResult is returned when a payload carries no result.
	ErrMissingResult = errors.New("payload has no result")

	// ErrInvalidSignature is returned when the payload signature does not
	// verify against the identity's bound verifying key.
	ErrInvalidSignature = errors.New("invalid payload signature")

	// ErrResultTypeMismatch is returned by an extractor invoked on a result
	// of a different variant.
	ErrResultTypeMismatch = errors.New("result type mismatch")

	// ErrInvalidExtensionKind is returned for an extension kind outside the
	// closed enum.
	ErrInvalidExtensionKind = errors.New("invalid extension kind")

	// ErrInvalidReturnType is returned for a declared return type outside
	// the closed enum.
	ErrInvalidReturnType = errors.New("invalid return type")
)

// Shared-state store errors.
var (
	// ErrObjectNotFound is returned when a shared object does not exist in
	// the host store (unpublished or never created).
	ErrObjectNotFound = errors.New("shared object not found")
)

// Script storage errors.
var (
	// ErrContentNotFound is returned when requested content cannot be found
	// in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not
	// accessible.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is
	// malformed or unsupported.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)
