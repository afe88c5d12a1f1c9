// Package interfaces defines the core types and error taxonomy shared by the
// oracle trust-establishment components. It provides the contract between
// components without implementation details.
package interfaces

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Principal identifies an actor (admin, registrar, operator) by a 20-byte
// address.
type Principal [20]byte

// NewPrincipalFromBytes creates a principal from a raw 20-byte slice.
func NewPrincipalFromBytes(b []byte) (Principal, error) {
	if len(b) != 20 {
		return Principal{}, errors.New("invalid principal length: must be 20 bytes")
	}

	var p Principal
	copy(p[:], b)
	return p, nil
}

// NewPrincipalFromHex creates a principal from a 40-character hex string,
// with or without a 0x prefix.
func NewPrincipalFromHex(s string) (Principal, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean) != 40 {
		return Principal{}, errors.New("invalid principal length: hex string must be 40 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewPrincipalFromBytes(raw)
}

// String returns the hex representation of the principal.
func (p Principal) String() string {
	return hex.EncodeToString(p[:])
}

// Bytes returns the raw 20-byte principal.
func (p Principal) Bytes() []byte {
	return p[:]
}

// Equal compares two principals for equality.
func (p Principal) Equal(other Principal) bool {
	return p == other
}

// MeasurementSize is the length in bytes of a single measurement register.
const MeasurementSize = 48

// Measurement is one fixed-length fingerprint of enclave code or
// configuration state (an MRTD or RTMR style register).
type Measurement [MeasurementSize]byte

// NewMeasurementFromBytes creates a measurement from a raw byte slice.
func NewMeasurementFromBytes(b []byte) (Measurement, error) {
	if len(b) != MeasurementSize {
		return Measurement{}, fmt.Errorf("invalid measurement length %d: must be %d bytes", len(b), MeasurementSize)
	}

	var m Measurement
	copy(m[:], b)
	return m, nil
}

// NewMeasurementFromHex creates a measurement from a hex string.
func NewMeasurementFromHex(s string) (Measurement, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Measurement{}, fmt.Errorf("invalid hex format: %w", err)
	}
	return NewMeasurementFromBytes(raw)
}

// String returns the hex representation of the measurement.
func (m Measurement) String() string {
	return hex.EncodeToString(m[:])
}

// MeasurementSet is an ordered sequence of measurements. Order is
// significant: comparisons are positional.
type MeasurementSet []Measurement

// Equal reports whether two sets match element-for-element at every
// position. A single differing byte anywhere makes the sets unequal.
func (ms MeasurementSet) Equal(other MeasurementSet) bool {
	if len(ms) != len(other) {
		return false
	}
	for i := range ms {
		if !bytes.Equal(ms[i][:], other[i][:]) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (ms MeasurementSet) Clone() MeasurementSet {
	out := make(MeasurementSet, len(ms))
	copy(out, ms)
	return out
}

// Attestation is an opaque attestation document produced by the platform.
// Its structure and chain of trust are validated by the platform primitive,
// never by this package.
type Attestation []byte

// VerifyingKey is an Ed25519 public key extracted from a verified
// attestation document.
type VerifyingKey []byte

// Valid reports whether the key has the expected Ed25519 length.
func (k VerifyingKey) Valid() bool {
	return len(k) == ed25519.PublicKeySize
}

// Equal compares two verifying keys.
func (k VerifyingKey) Equal(other VerifyingKey) bool {
	return bytes.Equal(k, other)
}

// FeedID is a 32-byte object locator for an oracle feed.
type FeedID [32]byte

// ComputeFeedID derives a feed ID from its source locator and the creating
// principal, mirroring how the host store derives object addresses.
func ComputeFeedID(sourceLocator string, createdBy Principal) FeedID {
	return FeedID(crypto.Keccak256Hash([]byte(sourceLocator), createdBy[:]))
}

// NewFeedIDFromHex creates a feed ID from a 64-character hex string.
func NewFeedIDFromHex(s string) (FeedID, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean) != 64 {
		return FeedID{}, errors.New("invalid feed ID length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return FeedID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var id FeedID
	copy(id[:], raw)
	return id, nil
}

// String returns the hex representation of the feed ID.
func (id FeedID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 32-byte feed ID.
func (id FeedID) Bytes() []byte {
	return id[:]
}

// Equal compares two feed IDs.
func (id FeedID) Equal(other FeedID) bool {
	return id == other
}

// ExtensionKind is the closed enum of producer runtimes a feed may declare.
type ExtensionKind uint8

const (
	// ExtensionJS marks a feed whose producer script runs on the embedded
	// JavaScript engine.
	ExtensionJS ExtensionKind = iota
)

// Validate checks that the kind is a member of the closed enum.
func (e ExtensionKind) Validate() error {
	switch e {
	case ExtensionJS:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidExtensionKind, e)
	}
}

// String returns the name of the extension kind.
func (e ExtensionKind) String() string {
	switch e {
	case ExtensionJS:
		return "js"
	default:
		return "unknown"
	}
}

// ExtensionKindFromString parses an extension kind name.
func ExtensionKindFromString(s string) (ExtensionKind, error) {
	switch s {
	case "js":
		return ExtensionJS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidExtensionKind, s)
	}
}
