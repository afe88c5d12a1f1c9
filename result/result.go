// Package result implements the closed algebra of oracle result values. A
// Result carries its own runtime tag; ReturnType is the shape a feed
// declares independently of any stored value. Extractors are the type-safety
// boundary when results travel through the host's untyped shared storage.
package result

import (
	"encoding/binary"
	"fmt"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// Kind tags the concrete variant held by a Result.
type Kind uint8

const (
	KindString Kind = iota
	KindBoolean
	KindNumber
	KindBytes
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Result is the closed tagged union of oracle result values. Construct it
// only through the Make helpers; the zero value is an empty string result.
type Result struct {
	kind Kind
	str  string
	b    bool
	num  uint64
	raw  []byte
}

// MakeString constructs a string result.
func MakeString(s string) Result {
	return Result{kind: KindString, str: s}
}

// MakeBoolean constructs a boolean result.
func MakeBoolean(b bool) Result {
	return Result{kind: KindBoolean, b: b}
}

// MakeNumber constructs an unsigned integer result.
func MakeNumber(n uint64) Result {
	return Result{kind: KindNumber, num: n}
}

// MakeBytes constructs a byte-vector result. The slice is copied.
func MakeBytes(b []byte) Result {
	raw := make([]byte, len(b))
	copy(raw, b)
	return Result{kind: KindBytes, raw: raw}
}

// Kind returns the runtime tag of the result.
func (r Result) Kind() Kind {
	return r.kind
}

// ExtractString returns the string value, or ErrResultTypeMismatch if the
// result holds a different variant.
func (r Result) ExtractString() (string, error) {
	if r.kind != KindString {
		return "", fmt.Errorf("%w: want string, have %s", interfaces.ErrResultTypeMismatch, r.kind)
	}
	return r.str, nil
}

// ExtractBoolean returns the boolean value, or ErrResultTypeMismatch.
func (r Result) ExtractBoolean() (bool, error) {
	if r.kind != KindBoolean {
		return false, fmt.Errorf("%w: want boolean, have %s", interfaces.ErrResultTypeMismatch, r.kind)
	}
	return r.b, nil
}

// ExtractNumber returns the numeric value, or ErrResultTypeMismatch.
func (r Result) ExtractNumber() (uint64, error) {
	if r.kind != KindNumber {
		return 0, fmt.Errorf("%w: want number, have %s", interfaces.ErrResultTypeMismatch, r.kind)
	}
	return r.num, nil
}

// ExtractBytes returns a copy of the byte-vector value, or
// ErrResultTypeMismatch.
func (r Result) ExtractBytes() ([]byte, error) {
	if r.kind != KindBytes {
		return nil, fmt.Errorf("%w: want bytes, have %s", interfaces.ErrResultTypeMismatch, r.kind)
	}
	out := make([]byte, len(r.raw))
	copy(out, r.raw)
	return out, nil
}

// MatchesReturnType reports whether the result's runtime tag matches a
// declared return type.
func (r Result) MatchesReturnType(rt ReturnType) bool {
	switch r.kind {
	case KindString:
		return rt == ReturnString
	case KindBoolean:
		return rt == ReturnBoolean
	case KindNumber:
		return rt == ReturnNumber
	case KindBytes:
		return rt == ReturnVector
	default:
		return false
	}
}

// String renders the result for logs.
func (r Result) String() string {
	switch r.kind {
	case KindString:
		return fmt.Sprintf("string(%q)", r.str)
	case KindBoolean:
		return fmt.Sprintf("boolean(%t)", r.b)
	case KindNumber:
		return fmt.Sprintf("number(%d)", r.num)
	case KindBytes:
		return fmt.Sprintf("bytes(%x)", r.raw)
	default:
		return "unknown"
	}
}

// Encode appends the canonical encoding of the result to dst: one tag byte
// followed by the variant payload. Numbers are 8-byte little-endian;
// strings and byte vectors carry a uvarint length prefix. Any change here
// invalidates every existing signature.
func (r Result) Encode(dst []byte) []byte {
	dst = append(dst, byte(r.kind))
	switch r.kind {
	case KindString:
		dst = binary.AppendUvarint(dst, uint64(len(r.str)))
		dst = append(dst, r.str...)
	case KindBoolean:
		if r.b {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	case KindNumber:
		dst = binary.LittleEndian.AppendUint64(dst, r.num)
	case KindBytes:
		dst = binary.AppendUvarint(dst, uint64(len(r.raw)))
		dst = append(dst, r.raw...)
	}
	return dst
}
