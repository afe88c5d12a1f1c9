package feed

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/result"
)

// IntentScopeProcessData is the discriminator producers stamp on oracle
// update payloads. Other scopes are reserved.
const IntentScopeProcessData byte = 0

// Payload is the signed unit an off-chain producer submits: a one-byte
// intent discriminator, the producer's computation time, and the computed
// result. The signed bytes are the canonical encoding of exactly these
// three fields, in this order; any reordering or extra field invalidates
// every existing signature.
type Payload struct {
	IntentScope byte
	TimestampMs uint64
	Result      *result.Result
}

// Encode returns the canonical signing bytes: intent scope (1 byte), then
// the timestamp as a fixed-width 8-byte little-endian integer, then the
// result's tagged encoding. A payload without a result cannot be encoded.
func (p Payload) Encode() ([]byte, error) {
	if p.Result == nil {
		return nil, fmt.Errorf("%w: cannot encode", interfaces.ErrMissingResult)
	}

	buf := make([]byte, 0, 32)
	buf = append(buf, p.IntentScope)
	buf = binary.LittleEndian.AppendUint64(buf, p.TimestampMs)
	buf = p.Result.Encode(buf)
	return buf, nil
}

// Sign produces the producer's signature over the canonical payload bytes.
func Sign(priv ed25519.PrivateKey, p Payload) ([]byte, error) {
	msg, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, msg), nil
}

// VerifySignature checks sig against the identity's bound verifying key
// over the canonical payload bytes.
func VerifySignature(key interfaces.VerifyingKey, p Payload, sig []byte) error {
	if !key.Valid() {
		return fmt.Errorf("%w: no valid verifying key bound", interfaces.ErrInvalidSignature)
	}

	msg, err := p.Encode()
	if err != nil {
		return err
	}

	if !ed25519.Verify(ed25519.PublicKey(key), msg, sig) {
		return interfaces.ErrInvalidSignature
	}
	return nil
}
