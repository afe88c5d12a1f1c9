package httpserver

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/producer"
	"github.com/coeus-network/tee-oracle-backend/result"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler processes oracle API requests. It bridges the attestation
// provider, the script engine and the feed runner.
type Handler struct {
	provider attestor.AttestationProvider
	signer   *producer.Signer
	runner   *producer.Runner
	engine   *producer.Engine
	log      *slog.Logger
}

// NewHandler creates an HTTP request handler with the given dependencies.
func NewHandler(provider attestor.AttestationProvider, signer *producer.Signer, runner *producer.Runner, engine *producer.Engine, log *slog.Logger) *Handler {
	return &Handler{
		provider: provider,
		signer:   signer,
		runner:   runner,
		engine:   engine,
		log:      log,
	}
}

// AttestationResponse carries the attestation document over the enclave's
// verifying key.
type AttestationResponse struct {
	Attestation string `json:"attestation"`
	PublicKey   string `json:"public_key"`
}

// ProcessDataRequest names the feed to refresh.
type ProcessDataRequest struct {
	FeedID string `json:"feed_id"`
}

// SignedPayload is the signed refresh response relayed to submitters. The
// signature covers the canonical payload encoding, not this JSON.
type SignedPayload struct {
	IntentScope uint8           `json:"intent_scope"`
	TimestampMs uint64          `json:"timestamp_ms"`
	Result      json.RawMessage `json:"result"`
	Signature   string          `json:"signature"`
}

// ExecuteCodeRequest runs a script outside any feed, for testing scripts
// before deployment.
type ExecuteCodeRequest struct {
	Code       string `json:"code"`
	ReturnType string `json:"return_type"`
}

// ExecuteCodeResponse reports the script outcome.
type ExecuteCodeResponse struct {
	Result  json.RawMessage `json:"result,omitempty"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
}

// HandleGetAttestation returns an attestation document binding the enclave's
// verifying key.
//
// URL format: GET /get_attestation
func (h *Handler) HandleGetAttestation(w http.ResponseWriter, r *http.Request) {
	doc, err := h.provider.Attest(h.signer.ReportData())
	if err != nil {
		h.log.Error("Failed to produce attestation", "err", err)
		http.Error(w, "attestation unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, AttestationResponse{
		Attestation: hex.EncodeToString(doc),
		PublicKey:   hex.EncodeToString(h.signer.PublicKey()),
	})
}

// HandleProcessData refreshes a feed: runs its script, submits the signed
// result, and returns the signed payload so the caller can relay it.
//
// URL format: POST /process_data
func (h *Handler) HandleProcessData(w http.ResponseWriter, r *http.Request) {
	var req ProcessDataRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	feedID, err := interfaces.NewFeedIDFromHex(req.FeedID)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid feed_id: %v", err), http.StatusBadRequest)
		return
	}

	payload, sig, err := h.runner.RefreshFeed(r.Context(), feedID)
	if err != nil {
		h.log.Warn("Feed refresh failed", slog.String("feed_id", feedID.String()), "err", err)
		http.Error(w, err.Error(), admissionStatus(err))
		return
	}

	resultJSON, err := marshalResult(payload.Result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, SignedPayload{
		IntentScope: payload.IntentScope,
		TimestampMs: payload.TimestampMs,
		Result:      resultJSON,
		Signature:   hex.EncodeToString(sig),
	})
}

// HandleExecuteCode runs an ad-hoc script and returns its converted result.
// Script failures are reported in the response body, not as HTTP errors.
//
// URL format: POST /execute_code
func (h *Handler) HandleExecuteCode(w http.ResponseWriter, r *http.Request) {
	var req ExecuteCodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	returnType, err := result.ReturnTypeFromString(req.ReturnType)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid return_type: %v", err), http.StatusBadRequest)
		return
	}

	res, err := h.engine.Execute(r.Context(), req.Code, returnType)
	if err != nil {
		writeJSON(w, http.StatusOK, ExecuteCodeResponse{Success: false, Error: err.Error()})
		return
	}

	resultJSON, err := marshalResult(res)
	if err != nil {
		writeJSON(w, http.StatusOK, ExecuteCodeResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ExecuteCodeResponse{Result: resultJSON, Success: true})
}

// marshalResult renders a result as an externally tagged JSON object,
// e.g. {"NUMBER": 42} or {"VECTOR": "0a0b"}.
func marshalResult(res *result.Result) (json.RawMessage, error) {
	if res == nil {
		return nil, fmt.Errorf("no result to encode")
	}

	switch res.Kind() {
	case result.KindString:
		s, _ := res.ExtractString()
		return json.Marshal(map[string]string{"STRING": s})
	case result.KindBoolean:
		b, _ := res.ExtractBoolean()
		return json.Marshal(map[string]bool{"BOOLEAN": b})
	case result.KindNumber:
		n, _ := res.ExtractNumber()
		return json.Marshal(map[string]uint64{"NUMBER": n})
	case result.KindBytes:
		raw, _ := res.ExtractBytes()
		return json.Marshal(map[string]string{"VECTOR": hex.EncodeToString(raw)})
	default:
		return nil, fmt.Errorf("unknown result kind %d", res.Kind())
	}
}

// admissionStatus maps admission errors to HTTP status codes.
func admissionStatus(err error) int {
	switch {
	case isOneOf(err,
		interfaces.ErrStaleResult,
		interfaces.ErrTooEarly,
		interfaces.ErrMissingResult,
		interfaces.ErrResultTypeMismatch):
		return http.StatusConflict
	case isOneOf(err, interfaces.ErrInvalidSignature):
		return http.StatusUnauthorized
	case isOneOf(err, interfaces.ErrObjectNotFound, interfaces.ErrContentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func isOneOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("Failed to encode response", "err", err)
	}
}
