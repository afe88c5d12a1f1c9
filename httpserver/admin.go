package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coeus-network/tee-oracle-backend/feed"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/ledger"
	"github.com/coeus-network/tee-oracle-backend/producer"
	"github.com/coeus-network/tee-oracle-backend/result"
)

// AdminHandler serves operator endpoints for feed lifecycle management.
// These are meant to be reachable only from the operator network, not the
// public API surface.
type AdminHandler struct {
	Scripts   interfaces.ScriptStorage
	Store     interfaces.SharedStore
	Scheduler *producer.Scheduler
	Creator   interfaces.Principal
	Log       *slog.Logger
}

// CreateFeedRequest describes a new oracle feed. The script source is
// stored content-addressed; the feed references it by ID.
type CreateFeedRequest struct {
	SourceLocator    string `json:"source_locator"`
	Script           string `json:"script"`
	Extension        string `json:"extension"`
	ReturnType       string `json:"return_type"`
	EarliestUpdateTs uint64 `json:"earliest_update_ts"`
	CronSpec         string `json:"cron_spec,omitempty"`
}

// CreateFeedResponse returns the identifiers of the published feed.
type CreateFeedResponse struct {
	FeedID   string `json:"feed_id"`
	ScriptID string `json:"script_id"`
}

// HandleCreateFeed stores the feed's script, constructs and publishes the
// feed, and optionally schedules periodic refreshes.
//
// URL format: POST /admin/create_feed
func (h *AdminHandler) HandleCreateFeed(w http.ResponseWriter, r *http.Request) {
	var req CreateFeedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	extension, err := interfaces.ExtensionKindFromString(req.Extension)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid extension: %v", err), http.StatusBadRequest)
		return
	}

	returnType, err := result.ReturnTypeFromString(req.ReturnType)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid return_type: %v", err), http.StatusBadRequest)
		return
	}

	if req.Script == "" {
		http.Error(w, "script is empty", http.StatusBadRequest)
		return
	}

	scriptID, err := h.Scripts.Store(r.Context(), []byte(req.Script), interfaces.ScriptType)
	if err != nil {
		h.Log.Error("Failed to store feed script", "err", err)
		http.Error(w, "failed to store script", http.StatusBadGateway)
		return
	}

	f, token, err := feed.New(h.Creator, req.SourceLocator, scriptID, extension, returnType, req.EarliestUpdateTs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := ledger.PublishFeed(h.Store, f, token); err != nil {
		h.Log.Error("Failed to publish feed", slog.String("feed_id", f.ID().String()), "err", err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	if req.CronSpec != "" && h.Scheduler != nil {
		if err := h.Scheduler.AddFeed(f.ID(), req.CronSpec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	h.Log.Info("Feed created",
		slog.String("feed_id", f.ID().String()),
		slog.String("script_id", scriptID.String()),
		slog.String("return_type", returnType.String()))

	writeJSON(w, http.StatusOK, CreateFeedResponse{
		FeedID:   f.ID().String(),
		ScriptID: scriptID.String(),
	})
}

// HandleRemoveFeedSchedule stops scheduled refreshes for a feed. The feed
// object itself stays published.
//
// URL format: POST /admin/unschedule_feed
func (h *AdminHandler) HandleRemoveFeedSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FeedID string `json:"feed_id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	feedID, err := interfaces.NewFeedIDFromHex(req.FeedID)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid feed_id: %v", err), http.StatusBadRequest)
		return
	}

	if h.Scheduler != nil {
		h.Scheduler.RemoveFeed(feedID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unscheduled"})
}
