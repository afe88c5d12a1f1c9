package scriptstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// AggregatorBackend fetches content from a public blob aggregator over HTTP.
// It is read-only; uploads go through the aggregator's own publisher flow,
// outside this service.
type AggregatorBackend struct {
	baseURL     string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// NewAggregatorBackend creates a read-only backend against the aggregator at
// baseURL, e.g. https://aggregator.example.com.
func NewAggregatorBackend(baseURL string, log *slog.Logger) *AggregatorBackend {
	return &AggregatorBackend{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
		locationURI: fmt.Sprintf("aggregator://%s", baseURL),
	}
}

// Fetch retrieves a blob by content ID. Returns ErrContentNotFound on 404.
func (b *AggregatorBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	start := time.Now()
	url := fmt.Sprintf("%s/v1/blobs/%s", b.baseURL, id.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn("Aggregator request failed",
			slog.String("url", url),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, interfaces.ErrContentNotFound
	default:
		return nil, fmt.Errorf("aggregator returned status %d for %s", resp.StatusCode, id.String())
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregator response: %w", err)
	}

	// Aggregator blobs are addressed by their own blob ID, not our digest.
	// Verify the content matches what the caller asked for.
	if computed := interfaces.ComputeContentID(data); !computed.Equal(id) {
		return nil, fmt.Errorf("aggregator content digest mismatch for %s", id.String())
	}

	b.log.Debug("Fetched content from aggregator",
		slog.String("content_id", id.String()),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store is not supported; the aggregator is read-only from this service.
func (b *AggregatorBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	return interfaces.ComputeContentID(data), fmt.Errorf("aggregator backend is read-only")
}

// Available probes the aggregator with a HEAD request to its root.
func (b *AggregatorBackend) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.baseURL, nil)
	if err != nil {
		return false
	}

	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("Aggregator unavailable", "err", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Name returns a unique identifier for this backend.
func (b *AggregatorBackend) Name() string {
	return fmt.Sprintf("aggregator-%s", b.baseURL)
}

// LocationURI returns the URI that identifies this backend.
func (b *AggregatorBackend) LocationURI() string {
	return b.locationURI
}
