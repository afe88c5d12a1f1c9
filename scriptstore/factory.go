package scriptstore

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

// Factory creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a factory that can create storage backends.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{log: logger}
}

// BackendFor creates a storage backend from a location URI.
// The URI format is [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - ipfs:// - IPFS node, addressed through its files API
//   - vault:// - HashiCorp Vault KV v2 engine
//   - aggregator:// - Read-only public blob aggregator
//   - memory:// - In-memory storage for tests
//
// Returns ErrInvalidLocationURI if the URI is invalid or the scheme is
// unsupported.
func (sf *Factory) BackendFor(locationURI string) (interfaces.ScriptStorage, error) {
	loc, err := interfaces.NewStorageLocation(locationURI)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "file":
		return sf.createFileBackend(loc)
	case "s3":
		return sf.createS3Backend(loc)
	case "ipfs":
		return sf.createIPFSBackend(loc)
	case "vault":
		return sf.createVaultBackend(loc)
	case "aggregator":
		return sf.createAggregatorBackend(loc)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme %q", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of location
// URIs. It stores content to all available backends and fetches from the
// first one that has the content. Returns an error if no valid backends
// could be created.
func (sf *Factory) CreateMultiBackend(locationURIs []string) (interfaces.ScriptStorage, error) {
	backends := make([]interfaces.ScriptStorage, 0, len(locationURIs))

	for _, uri := range locationURIs {
		backend, err := sf.BackendFor(uri)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", uri))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiBackend(backends, sf.log), nil
}

// createFileBackend creates a file system storage backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *Factory) createFileBackend(loc interfaces.StorageLocation) (interfaces.ScriptStorage, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", loc.String()))

	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %q", interfaces.ErrInvalidLocationURI, loc.String())
	}

	return NewFileBackend(path, sf.log)
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
// Supports both public buckets (read-only) and authenticated access.
func (sf *Factory) createS3Backend(loc interfaces.StorageLocation) (interfaces.ScriptStorage, error) {
	sf.log.Debug("Creating S3 backend", slog.String("uri", loc.String()))

	bucketName := loc.Host
	path := strings.TrimPrefix(loc.Path, "/")

	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := loc.GetParam("endpoint")

	var accessKey, secretKey string
	if loc.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(loc.Auth, ":")
		sf.log.Debug("Using embedded credentials for write access")
	} else {
		sf.log.Debug("No credentials provided, S3 bucket assumed to be public, write operations may fail")
	}

	return NewS3Backend(bucketName, path, region, endpoint, accessKey, secretKey, sf.log)
}

// createIPFSBackend creates an IPFS storage backend.
// URI format: ipfs://host:port/?timeout=30s
func (sf *Factory) createIPFSBackend(loc interfaces.StorageLocation) (interfaces.ScriptStorage, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", loc.String()))

	host, port, found := strings.Cut(loc.Host, ":")
	if !found || port == "" {
		port = "5001" // Default IPFS API port
	}

	timeout := loc.GetParam("timeout")
	if timeout == "" {
		timeout = "30s"
	}

	return NewIPFSBackend(host, port, timeout, sf.log)
}

// createVaultBackend creates a Vault KV v2 storage backend.
// URI format: vault://host:port/mount/path?token=...
// The token may also come from the standard VAULT_TOKEN environment.
func (sf *Factory) createVaultBackend(loc interfaces.StorageLocation) (interfaces.ScriptStorage, error) {
	sf.log.Debug("Creating Vault backend", slog.String("uri", loc.String()))

	parts := strings.SplitN(strings.Trim(loc.Path, "/"), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: expected vault://host:port/mount/path", interfaces.ErrInvalidLocationURI)
	}

	address := fmt.Sprintf("http://%s", loc.Host)
	if loc.GetParam("tls") == "true" {
		address = fmt.Sprintf("https://%s", loc.Host)
	}

	return NewVaultBackend(address, parts[0], parts[1], loc.GetParam("token"), sf.log)
}

// createAggregatorBackend creates a read-only HTTP aggregator backend.
// URI format: aggregator://host[:port][?tls=false]
func (sf *Factory) createAggregatorBackend(loc interfaces.StorageLocation) (interfaces.ScriptStorage, error) {
	sf.log.Debug("Creating aggregator backend", slog.String("uri", loc.String()))

	if loc.Host == "" {
		return nil, fmt.Errorf("%w: empty host in aggregator URI %q", interfaces.ErrInvalidLocationURI, loc.String())
	}

	scheme := "https"
	if loc.GetParam("tls") == "false" {
		scheme = "http"
	}

	return NewAggregatorBackend(fmt.Sprintf("%s://%s", scheme, loc.Host), sf.log), nil
}
