// Package metrics exposes Prometheus instrumentation for the oracle
// backend and a standalone metrics HTTP server.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coeus-network/tee-oracle-backend/interfaces"
)

var (
	// SubmissionsAdmitted counts oracle results that passed admission.
	SubmissionsAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oracle_submissions_admitted_total",
		Help: "Number of oracle result submissions admitted",
	})

	// SubmissionsRejected counts rejected submissions by reason.
	SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_submissions_rejected_total",
		Help: "Number of oracle result submissions rejected, by reason",
	}, []string{"reason"})

	// AttestationsVerified counts attestation document verifications by outcome.
	AttestationsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oracle_attestations_verified_total",
		Help: "Number of attestation document verifications, by outcome",
	}, []string{"outcome"})

	// ScriptExecutionDuration observes producer script execution time.
	ScriptExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oracle_script_execution_duration_seconds",
		Help:    "Producer script execution duration",
		Buckets: prometheus.DefBuckets,
	})
)

// RejectionReason maps an admission error to a stable metric label.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, interfaces.ErrStaleResult):
		return "stale_result"
	case errors.Is(err, interfaces.ErrTooEarly):
		return "too_early"
	case errors.Is(err, interfaces.ErrMissingResult):
		return "missing_result"
	case errors.Is(err, interfaces.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, interfaces.ErrObjectNotFound):
		return "feed_not_found"
	default:
		return "other"
	}
}

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the named service listening on addr.
func New(name, addr string) (*MetricsServer, error) {
	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oracle_build_info",
		Help: "Build information",
	}, []string{"service"})
	if err := prometheus.Register(buildInfo); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		buildInfo = already.ExistingCollector.(*prometheus.GaugeVec)
	}
	buildInfo.WithLabelValues(name).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
