package result

import (
	"fmt"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// ReturnType is the closed enum of shapes a feed promises its stored result
// will match. It is tracked independently of any concrete Result so callers
// can branch on expected shape before a value exists.
type ReturnType uint8

const (
	ReturnString ReturnType = iota
	ReturnBoolean
	ReturnNumber
	ReturnVector
)

// Validate checks that the type is a member of the closed enum.
func (rt ReturnType) Validate() error {
	switch rt {
	case ReturnString, ReturnBoolean, ReturnNumber, ReturnVector:
		return nil
	default:
		return fmt.Errorf("%w: %d", interfaces.ErrInvalidReturnType, rt)
	}
}

// String returns the declared shape name.
func (rt ReturnType) String() string {
	switch rt {
	case ReturnString:
		return "STRING"
	case ReturnBoolean:
		return "BOOLEAN"
	case ReturnNumber:
		return "NUMBER"
	case ReturnVector:
		return "VECTOR"
	default:
		return "UNKNOWN"
	}
}

// ReturnTypeFromString parses a declared shape name.
func ReturnTypeFromString(s string) (ReturnType, error) {
	switch s {
	case "STRING":
		return ReturnString, nil
	case "BOOLEAN":
		return ReturnBoolean, nil
	case "NUMBER":
		return ReturnNumber, nil
	case "VECTOR":
		return ReturnVector, nil
	default:
		return 0, fmt.Errorf("%w: %q", interfaces.ErrInvalidReturnType, s)
	}
}

// IsStringType reports whether the declared shape is STRING.
func IsStringType(rt ReturnType) bool { return rt == ReturnString }

// IsBooleanType reports whether the declared shape is BOOLEAN.
func IsBooleanType(rt ReturnType) bool { return rt == ReturnBoolean }

// IsNumberType reports whether the declared shape is NUMBER.
func IsNumberType(rt ReturnType) bool { return rt == ReturnNumber }

// IsVectorType reports whether the declared shape is VECTOR.
func IsVectorType(rt ReturnType) bool { return rt == ReturnVector }
