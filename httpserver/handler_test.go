package httpserver

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-network/tee-oracle-backend/attestor"
	"github.com/coeus-network/tee-oracle-backend/interfaces"
	"github.com/coeus-network/tee-oracle-backend/ledger"
	"github.com/coeus-network/tee-oracle-backend/producer"
	"github.com/coeus-network/tee-oracle-backend/scriptstore"
	"github.com/coeus-network/tee-oracle-backend/trust"
)

var testAdmin = interfaces.Principal{0x01}

type testServer struct {
	router http.Handler
	store  interfaces.SharedStore
	signer *producer.Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.Default()

	signer, err := producer.NewSigner()
	require.NoError(t, err)

	provider := attestor.StaticProvider{}
	doc, err := provider.Attest(signer.ReportData())
	require.NoError(t, err)

	ms := interfaces.MeasurementSet{{0x55}}
	verifier := attestor.NewStaticVerifier()
	verifier.Add(doc, &attestor.AttestationReport{Measurements: ms, PublicKey: signer.PublicKey()})

	registry := attestor.NewRegistry(testAdmin, verifier)
	identity, err := registry.Register(testAdmin, ms)
	require.NoError(t, err)
	_, err = registry.Verify(identity, doc)
	require.NoError(t, err)

	scripts := scriptstore.NewMemoryBackend()
	store := ledger.NewStore()
	engine := producer.NewEngine(nil, logger)
	runner := &producer.Runner{
		Engine:   engine,
		Signer:   signer,
		Scripts:  scripts,
		Store:    store,
		Trust:    trust.NewConfig(testAdmin),
		Identity: identity,
		Log:      logger,
	}

	handler := NewHandler(provider, signer, runner, engine, logger)
	adminHandler := &AdminHandler{
		Scripts: scripts,
		Store:   store,
		Creator: testAdmin,
		Log:     logger,
	}

	srv, err := New(&HTTPServerConfig{
		ListenAddr:   "127.0.0.1:0",
		Log:          logger,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, handler, adminHandler)
	require.NoError(t, err)

	return &testServer{router: srv.getRouter(), store: store, signer: signer}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createFeed(t *testing.T, script, returnType string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/admin/create_feed", CreateFeedRequest{
		SourceLocator: "https://source.example/price",
		Script:        script,
		Extension:     "js",
		ReturnType:    returnType,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CreateFeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.FeedID
}

func TestHandleGetAttestation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/get_attestation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AttestationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, hex.EncodeToString(ts.signer.PublicKey()), resp.PublicKey)
	_, err := hex.DecodeString(resp.Attestation)
	assert.NoError(t, err)
	assert.NotEmpty(t, resp.Attestation)
}

func TestCreateFeedAndProcessData(t *testing.T) {
	ts := newTestServer(t)
	feedID := ts.createFeed(t, `40 + 2`, "NUMBER")

	rec := ts.do(t, http.MethodPost, "/process_data", ProcessDataRequest{FeedID: feedID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SignedPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint8(0), resp.IntentScope)
	assert.NotEmpty(t, resp.Signature)
	assert.JSONEq(t, `{"NUMBER": 42}`, string(resp.Result))

	// The admitted result landed in shared storage.
	id, err := interfaces.NewFeedIDFromHex(feedID)
	require.NoError(t, err)
	f, err := ledger.GetFeed(ts.store, id)
	require.NoError(t, err)
	n, err := f.Result().ExtractNumber()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

func TestProcessDataUnknownFeed(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/process_data", ProcessDataRequest{
		FeedID: "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessDataInvalidFeedID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/process_data", ProcessDataRequest{FeedID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessDataTooEarly(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/admin/create_feed", CreateFeedRequest{
		SourceLocator:    "https://source.example/gated",
		Script:           `1`,
		Extension:        "js",
		ReturnType:       "NUMBER",
		EarliestUpdateTs: uint64(time.Now().UnixMilli()) + 3_600_000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created CreateFeedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = ts.do(t, http.MethodPost, "/process_data", ProcessDataRequest{FeedID: created.FeedID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecuteCodeSuccess(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/execute_code", ExecuteCodeRequest{
		Code:       `"  hello  "`,
		ReturnType: "STRING",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExecuteCodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"STRING": "hello"}`, string(resp.Result))
}

func TestExecuteCodeFailureReportedInBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/execute_code", ExecuteCodeRequest{
		Code:       `-5`,
		ReturnType: "NUMBER",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExecuteCodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestExecuteCodeInvalidReturnType(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/execute_code", ExecuteCodeRequest{
		Code:       `1`,
		ReturnType: "FLOAT",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateFeedValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/admin/create_feed", CreateFeedRequest{
		SourceLocator: "x",
		Script:        `1`,
		Extension:     "python",
		ReturnType:    "NUMBER",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/admin/create_feed", CreateFeedRequest{
		SourceLocator: "x",
		Script:        "",
		Extension:     "js",
		ReturnType:    "NUMBER",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateFeedDuplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.createFeed(t, `1`, "NUMBER")

	// Same source locator and creator derive the same feed ID.
	rec := ts.do(t, http.MethodPost, "/admin/create_feed", CreateFeedRequest{
		SourceLocator: "https://source.example/price",
		Script:        `1`,
		Extension:     "js",
		ReturnType:    "NUMBER",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthAndDrainEndpoints(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health_check", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/livez", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", nil).Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/drain", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/readyz", nil).Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/undrain", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", nil).Code)
}
