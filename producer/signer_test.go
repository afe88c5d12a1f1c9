package producer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-network/tee-oracle-backend/feed"
	"github.com/coeus-network/tee-oracle-backend/result"
)

func TestSignerSignAndVerify(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	res := result.MakeNumber(42)
	p := feed.Payload{IntentScope: feed.IntentScopeProcessData, TimestampMs: 1_000, Result: &res}

	sig, err := signer.SignPayload(p)
	require.NoError(t, err)
	assert.NoError(t, feed.VerifySignature(signer.PublicKey(), p, sig))
}

func TestSignerReportDataEmbedsKey(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	data := signer.ReportData()
	assert.Equal(t, []byte(signer.PublicKey()), data[:32])
	assert.Equal(t, make([]byte, 32), data[32:])
}

func TestSignerFromSeedDeterministic(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	restored, err := NewSignerFromSeed(signer.Seed())
	require.NoError(t, err)
	assert.True(t, signer.PublicKey().Equal(restored.PublicKey()))

	_, err = NewSignerFromSeed([]byte("short"))
	assert.Error(t, err)
}

func TestKeystoreSealLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.sealed")
	ks, err := NewKeystore(path, []byte("sealing-secret"))
	require.NoError(t, err)

	signer, err := NewSigner()
	require.NoError(t, err)
	require.NoError(t, ks.Seal(signer))

	restored, err := ks.Load()
	require.NoError(t, err)
	assert.True(t, signer.PublicKey().Equal(restored.PublicKey()))
}

func TestKeystoreWrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.sealed")
	ks, err := NewKeystore(path, []byte("secret-a"))
	require.NoError(t, err)

	signer, err := NewSigner()
	require.NoError(t, err)
	require.NoError(t, ks.Seal(signer))

	wrong, err := NewKeystore(path, []byte("secret-b"))
	require.NoError(t, err)
	_, err = wrong.Load()
	assert.Error(t, err)
}

func TestKeystoreLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.sealed")
	ks, err := NewKeystore(path, []byte("secret"))
	require.NoError(t, err)

	first, err := ks.LoadOrCreate()
	require.NoError(t, err)

	// A second call resumes the sealed key instead of generating a new one.
	second, err := ks.LoadOrCreate()
	require.NoError(t, err)
	assert.True(t, first.PublicKey().Equal(second.PublicKey()))
}

func TestKeystoreRejectsEmptySecret(t *testing.T) {
	_, err := NewKeystore("/tmp/x", nil)
	assert.Error(t, err)
}
