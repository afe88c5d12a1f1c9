package scriptstore

import (
	"context"
	"sync"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

type memoryKey struct {
	id          interfaces.ContentID
	contentType interfaces.ContentType
}

// MemoryBackend is an in-memory ScriptStorage for tests and single-process
// setups.
type MemoryBackend struct {
	mu      sync.RWMutex
	content map[memoryKey][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{content: make(map[memoryKey][]byte)}
}

// Fetch retrieves data by content ID and type.
func (b *MemoryBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.content[memoryKey{id, contentType}]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Store saves data and returns its SHA-256 content ID.
func (b *MemoryBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeContentID(data)

	stored := make([]byte, len(data))
	copy(stored, data)

	b.mu.Lock()
	b.content[memoryKey{id, contentType}] = stored
	b.mu.Unlock()

	return id, nil
}

// Available always reports true.
func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this backend.
func (b *MemoryBackend) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this backend.
func (b *MemoryBackend) LocationURI() string {
	return "memory://"
}
