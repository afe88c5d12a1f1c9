package scriptstore

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

func TestFileBackendRoundTrip(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte(`fetchJSON("https://api.example.com").price`)
	id, err := backend.Store(ctx, data, interfaces.ScriptType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeContentID(data), id)

	got, err := backend.Fetch(ctx, id, interfaces.ScriptType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.True(t, backend.Available(ctx))
}

func TestFileBackendNotFound(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)

	_, err = backend.Fetch(context.Background(), interfaces.ContentID{0x01}, interfaces.ScriptType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestFileBackendSeparatesContentTypes(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir(), slog.Default())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("payload")
	id, err := backend.Store(ctx, data, interfaces.ScriptType)
	require.NoError(t, err)

	// Same content ID under a different type is a separate object.
	_, err = backend.Fetch(ctx, id, interfaces.SnapshotType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestMemoryBackendRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()

	data := []byte("script body")
	id, err := backend.Store(ctx, data, interfaces.ScriptType)
	require.NoError(t, err)

	got, err := backend.Fetch(ctx, id, interfaces.ScriptType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Mutating the returned slice must not affect the stored copy.
	got[0] = 'X'
	again, err := backend.Fetch(ctx, id, interfaces.ScriptType)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

// failingBackend simulates an unavailable or erroring backend.
type failingBackend struct {
	available bool
}

func (f *failingBackend) Fetch(ctx context.Context, id interfaces.ContentID, ct interfaces.ContentType) ([]byte, error) {
	return nil, fmt.Errorf("backend exploded")
}

func (f *failingBackend) Store(ctx context.Context, data []byte, ct interfaces.ContentType) (interfaces.ContentID, error) {
	return interfaces.ComputeContentID(data), fmt.Errorf("backend exploded")
}

func (f *failingBackend) Available(ctx context.Context) bool { return f.available }
func (f *failingBackend) Name() string                       { return "failing" }
func (f *failingBackend) LocationURI() string                { return "failing://" }

func TestMultiBackendFallsBack(t *testing.T) {
	healthy := NewMemoryBackend()
	multi := NewMultiBackend([]interfaces.ScriptStorage{
		&failingBackend{available: false},
		&failingBackend{available: true},
		healthy,
	}, slog.Default())
	ctx := context.Background()

	data := []byte("content")
	id, err := multi.Store(ctx, data, interfaces.ScriptType)
	require.NoError(t, err)

	got, err := multi.Fetch(ctx, id, interfaces.ScriptType)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	assert.True(t, multi.Available(ctx))
}

func TestMultiBackendAllFail(t *testing.T) {
	multi := NewMultiBackend([]interfaces.ScriptStorage{
		&failingBackend{available: true},
	}, slog.Default())
	ctx := context.Background()

	_, err := multi.Store(ctx, []byte("x"), interfaces.ScriptType)
	assert.Error(t, err)

	_, err = multi.Fetch(ctx, interfaces.ContentID{}, interfaces.ScriptType)
	assert.Error(t, err)

	assert.False(t, NewMultiBackend([]interfaces.ScriptStorage{
		&failingBackend{available: false},
	}, slog.Default()).Available(ctx))
}

func TestFactorySchemes(t *testing.T) {
	factory := NewFactory(slog.Default())

	fileBackend, err := factory.BackendFor("file://" + t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, fileBackend)

	memBackend, err := factory.BackendFor("memory://")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, memBackend)

	s3Backend, err := factory.BackendFor("s3://bucket/scripts?region=eu-west-1")
	require.NoError(t, err)
	assert.IsType(t, &S3Backend{}, s3Backend)

	ipfsBackend, err := factory.BackendFor("ipfs://127.0.0.1:5001")
	require.NoError(t, err)
	assert.IsType(t, &IPFSBackend{}, ipfsBackend)

	vaultBackend, err := factory.BackendFor("vault://127.0.0.1:8200/secret/oracle")
	require.NoError(t, err)
	assert.IsType(t, &VaultBackend{}, vaultBackend)

	aggBackend, err := factory.BackendFor("aggregator://blobs.example.com")
	require.NoError(t, err)
	assert.IsType(t, &AggregatorBackend{}, aggBackend)

	_, err = factory.BackendFor("ftp://nope")
	assert.Error(t, err)
}

func TestFactoryInvalidURIs(t *testing.T) {
	factory := NewFactory(slog.Default())

	_, err := factory.BackendFor("vault://127.0.0.1:8200/missing-path")
	assert.Error(t, err)

	_, err = factory.BackendFor("aggregator://")
	assert.Error(t, err)
}

func TestFactoryMultiBackendSkipsInvalid(t *testing.T) {
	factory := NewFactory(slog.Default())

	multi, err := factory.CreateMultiBackend([]string{
		"ftp://invalid",
		"memory://",
	})
	require.NoError(t, err)
	assert.True(t, multi.Available(context.Background()))

	_, err = factory.CreateMultiBackend([]string{"ftp://invalid"})
	assert.Error(t, err)
}
