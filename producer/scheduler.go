package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/feed"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/ledger"
	"github.com/coeus-network/tee-oracle-backend/metrics"
	"github.com/coeus-network/tee-oracle-backend/trust"
)

// Runner executes one feed refresh end to end: fetch the feed's script,
// run it, sign the resulting payload and submit it through the shared store.
type Runner struct {
	Engine   *Engine
	Signer   *Signer
	Scripts  interfaces.ScriptStorage
	Store    interfaces.SharedStore
	Trust    *trust.Config
	Identity *attestor.EnclaveIdentity
	Log      *slog.Logger

	// Now is the millisecond clock; defaults to wall time when nil.
	Now func() uint64
}

func (r *Runner) nowMs() uint64 {
	if r.Now != nil {
		return r.Now()
	}
	return uint64(time.Now().UnixMilli())
}

// RefreshFeed produces and submits a fresh result for the feed, returning
// the signed payload for callers that relay it.
func (r *Runner) RefreshFeed(ctx context.Context, id interfaces.FeedID) (feed.Payload, []byte, error) {
	f, err := ledger.GetFeed(r.Store, id)
	if err != nil {
		return feed.Payload{}, nil, err
	}

	script, err := r.Scripts.Fetch(ctx, f.ScriptID(), interfaces.ScriptType)
	if err != nil {
		return feed.Payload{}, nil, fmt.Errorf("failed to fetch feed script: %w", err)
	}

	res, err := r.Engine.Execute(ctx, string(script), f.ReturnType())
	if err != nil {
		return feed.Payload{}, nil, fmt.Errorf("script execution failed: %w", err)
	}

	payload := feed.Payload{
		IntentScope: feed.IntentScopeProcessData,
		TimestampMs: r.nowMs(),
		Result:      res,
	}

	sig, err := r.Signer.SignPayload(payload)
	if err != nil {
		return feed.Payload{}, nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	if err := ledger.SubmitResult(r.Store, r.Trust, r.Identity, id, payload, sig, r.nowMs()); err != nil {
		metrics.SubmissionsRejected.WithLabelValues(metrics.RejectionReason(err)).Inc()
		return feed.Payload{}, nil, err
	}

	metrics.SubmissionsAdmitted.Inc()
	r.Log.Info("Feed refreshed",
		slog.String("feed_id", id.String()),
		slog.Uint64("timestamp_ms", payload.TimestampMs))
	return payload, sig, nil
}

// Scheduler drives periodic feed refreshes on cron schedules.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron
	log    *slog.Logger

	mu      sync.Mutex
	entries map[interfaces.FeedID]cron.EntryID
}

// NewScheduler creates a scheduler around the given runner.
func NewScheduler(runner *Runner, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:  runner,
		cron:    cron.New(cron.WithSeconds()),
		log:     log,
		entries: make(map[interfaces.FeedID]cron.EntryID),
	}
}

// AddFeed schedules a feed for refresh on the given cron spec (with a
// seconds field, e.g. "0 * * * * *" for every minute). Re-adding a feed
// replaces its previous schedule.
func (s *Scheduler) AddFeed(id interfaces.FeedID, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.entries[id]; ok {
		s.cron.Remove(prev)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()

		if _, _, err := s.runner.RefreshFeed(ctx, id); err != nil {
			s.log.Warn("Feed refresh failed",
				slog.String("feed_id", id.String()),
				"err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s.entries[id] = entryID
	return nil
}

// RemoveFeed drops a feed's schedule.
func (s *Scheduler) RemoveFeed(id interfaces.FeedID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// Start begins running schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight refreshes.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
