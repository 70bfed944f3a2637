package api_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"candidate-notifier/internal/api"
	"candidate-notifier/internal/common/admission"
	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/models"
	"candidate-notifier/internal/store"
	sendnotification "candidate-notifier/internal/workers/application/send-notification"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockDispatcher struct {
	SubmitFunc func(event models.ApplicationEvent) error

	mu     sync.Mutex
	events []models.ApplicationEvent
}

func (m *MockDispatcher) Submit(event models.ApplicationEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(event)
	}
	return nil
}

func (m *MockDispatcher) Pending() int  { return 3 }
func (m *MockDispatcher) Capacity() int { return 110 }

func (m *MockDispatcher) Events() []models.ApplicationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ApplicationEvent(nil), m.events...)
}

type MockPinger struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

type testHarness struct {
	dispatcher *MockDispatcher
	pinger     *MockPinger
	router     chi.Router
}

func newHarness(t *testing.T, secret string) *testHarness {
	t.Helper()

	h := &testHarness{
		dispatcher: &MockDispatcher{},
		pinger:     &MockPinger{},
	}

	srv, err := api.New(api.Options{
		Service:        "candidate-notifier",
		Version:        "test",
		WebhookSecret:  secret,
		MonitoredTable: "job_application_tracking",
		Tables: store.Tables{
			Tracking:     "job_application_tracking",
			Candidates:   "auto_apply_cand",
			Requirements: "parsed_requirements",
		},
		Features: api.Features{Store: true, StoreDriver: "memory", Email: true, SMS: true, WebhookSecret: secret != ""},
	}, api.Dependencies{
		Dispatcher: h.dispatcher,
		Admission:  admission.New(10),
		Store:      h.pinger,
		Logger:     logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	h.router = srv.Routes()
	return h
}

func (h *testHarness) post(path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *testHarness) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const insertEvent = `{"type":"INSERT","table":"job_application_tracking","record":{"candId":42,"requirementId":"R9"}}`

// ==========================
// Webhook Tests
// ==========================

func TestJobMatch_InsertAccepted(t *testing.T) {
	h := newHarness(t, "")

	w := h.post("/webhook/job-match", insertEvent, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, float64(42), body["candId"])
	assert.Equal(t, float64(42), body["candidateId"])
	assert.Equal(t, "R9", body["requirementId"])
	assert.Equal(t, "Email and SMS notifications queued for cand_id: 42, requirement_id: R9", body["message"])
	assert.NotEmpty(t, body["timestamp"])

	events := h.dispatcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "42", events[0].CandidateID)
	assert.Equal(t, "R9", events[0].RequirementID)
	assert.Equal(t, models.EventInsert, events[0].EventType)
	assert.Equal(t, "job_application_tracking", events[0].TableName)
}

func TestJobMatch_IdentifierSpellings(t *testing.T) {
	tests := []struct {
		name   string
		record string
		wantC  string
		wantR  string
	}{
		{"snake case", `{"cand_id":"C-7","requirement_id":12}`, "C-7", "12"},
		{"candidate_id", `{"candidate_id":5,"requirement_id":"R1"}`, "5", "R1"},
		{"candidateId wins", `{"candidateId":1,"cand_id":2,"requirementId":3}`, "1", "3"},
		{"null spelling skipped", `{"candidateId":null,"cand_id":9,"requirementId":3}`, "9", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			w := h.post("/webhook/job-match", `{"type":"INSERT","table":"job_application_tracking","record":`+tt.record+`}`, nil)
			require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

			events := h.dispatcher.Events()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantC, events[0].CandidateID)
			assert.Equal(t, tt.wantR, events[0].RequirementID)
		})
	}
}

func TestJobMatch_Ignored(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{
			name:   "update event",
			body:   `{"type":"UPDATE","table":"job_application_tracking","record":{"candId":42,"requirementId":"R9"}}`,
			reason: "Event type 'UPDATE' not processed",
		},
		{
			name:   "delete event",
			body:   `{"type":"DELETE","table":"job_application_tracking","record":{"candId":42,"requirementId":"R9"},"old_record":{"candId":42,"requirementId":"R9"}}`,
			reason: "Event type 'DELETE' not processed",
		},
		{
			name:   "other table",
			body:   `{"type":"INSERT","table":"auto_apply_cand","record":{"candId":42,"requirementId":"R9"}}`,
			reason: "Table 'auto_apply_cand' not monitored",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			w := h.post("/webhook/job-match", tt.body, nil)
			require.Equal(t, http.StatusOK, w.Code)

			body := decode(t, w)
			assert.Equal(t, "ignored", body["status"])
			assert.Equal(t, tt.reason, body["reason"])
			assert.Empty(t, h.dispatcher.Events())
		})
	}
}

func TestJobMatch_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"malformed json", `{"type":`, ""},
		{"not an object", `[1,2]`, ""},
		{"missing table", `{"type":"INSERT","record":{"candId":1,"requirementId":2}}`, "Invalid payload structure"},
		{"missing requirement", `{"type":"INSERT","table":"job_application_tracking","record":{"candId":1}}`, ""},
		{"null record", `{"type":"INSERT","table":"job_application_tracking","record":null}`, ""},
		{"update with empty record", `{"type":"UPDATE","table":"job_application_tracking","record":{}}`, ""},
		{"other table with null record", `{"type":"INSERT","table":"other_table","record":null}`, "Invalid payload structure"},
		{"delete with zero identifier", `{"type":"DELETE","table":"job_application_tracking","record":{"cand_id":0,"requirement_id":7}}`, "cand_id and requirement_id required"},
		{"nul in identifier", `{"type":"INSERT","table":"job_application_tracking","record":{"cand_id":"1\u00002","requirement_id":7}}`, "cand_id and requirement_id required"},
		{"zero candidate", `{"type":"INSERT","table":"job_application_tracking","record":{"cand_id":0,"requirement_id":7}}`, "cand_id and requirement_id required"},
		{"blank requirement", `{"type":"INSERT","table":"job_application_tracking","record":{"cand_id":3,"requirement_id":"  "}}`, "cand_id and requirement_id required"},
		{"null identifiers", `{"type":"INSERT","table":"job_application_tracking","record":{"cand_id":null,"requirement_id":null}}`, "cand_id and requirement_id required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			w := h.post("/webhook/job-match", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			body := decode(t, w)
			assert.Equal(t, "INVALID_PAYLOAD", body["code"])
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
			}
			assert.Empty(t, h.dispatcher.Events())
		})
	}
}

func TestJobMatch_Secret(t *testing.T) {
	tests := []struct {
		name     string
		header   map[string]string
		wantCode int
	}{
		{"missing header", nil, http.StatusUnauthorized},
		{"wrong secret", map[string]string{"X-Webhook-Secret": "nope"}, http.StatusUnauthorized},
		{"prefix of secret", map[string]string{"X-Webhook-Secret": "s3cr"}, http.StatusUnauthorized},
		{"correct secret", map[string]string{"X-Webhook-Secret": "s3cret"}, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "s3cret")
			w := h.post("/webhook/job-match", insertEvent, tt.header)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Empty(t, h.dispatcher.Events())
			}
		})
	}
}

func TestJobMatch_DispatcherErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"queue full", sendnotification.ErrQueueFull, http.StatusServiceUnavailable},
		{"shutting down", sendnotification.ErrStopped, http.StatusServiceUnavailable},
		{"unexpected", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "")
			h.dispatcher.SubmitFunc = func(models.ApplicationEvent) error { return tt.err }

			w := h.post("/webhook/job-match", insertEvent, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusServiceUnavailable {
				assert.Equal(t, "5", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestJobMatch_PanicReturns500(t *testing.T) {
	h := newHarness(t, "")
	h.dispatcher.SubmitFunc = func(models.ApplicationEvent) error { panic("nil map") }

	w := h.post("/webhook/job-match", insertEvent, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ==========================
// Replay Tests
// ==========================

func TestReplay(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		h := newHarness(t, "s3cret")
		w := h.post("/webhook/replay", `{"candidateId":42,"requirementId":"R9"}`, map[string]string{"X-Webhook-Secret": "s3cret"})
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		events := h.dispatcher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "42", events[0].CandidateID)
		assert.Equal(t, "job_application_tracking", events[0].TableName)
	})

	t.Run("unauthorized", func(t *testing.T) {
		h := newHarness(t, "s3cret")
		w := h.post("/webhook/replay", `{"candidateId":42,"requirementId":"R9"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing requirement", func(t *testing.T) {
		h := newHarness(t, "")
		w := h.post("/webhook/replay", `{"candidateId":42}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, h.dispatcher.Events())
	})

	t.Run("zero identifier", func(t *testing.T) {
		h := newHarness(t, "")
		w := h.post("/webhook/replay", `{"candidateId":0,"requirementId":"R9"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// ==========================
// Health And Metadata Tests
// ==========================

func TestHealth(t *testing.T) {
	h := newHarness(t, "s3cret")

	w := h.get("/health")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])

	cfg := body["configuration"].(map[string]interface{})
	assert.Equal(t, true, cfg["store"])
	assert.Equal(t, "memory", cfg["store_driver"])
	assert.Equal(t, true, cfg["webhook_secret"])
	assert.Equal(t, false, cfg["run_lock"])

	tables := body["database_tables"].(map[string]interface{})
	assert.Equal(t, "auto_apply_cand", tables["candidates"])

	adm := body["admission"].(map[string]interface{})
	assert.Equal(t, float64(10), adm["capacity"])

	disp := body["dispatcher"].(map[string]interface{})
	assert.Equal(t, float64(3), disp["pending"])
}

func TestHealth_StoreDown(t *testing.T) {
	h := newHarness(t, "")
	h.pinger.PingFunc = func(context.Context) error { return stderrors.New("connection refused") }

	w := h.get("/health")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "connection refused", checks["store"])
}

func TestRoot(t *testing.T) {
	h := newHarness(t, "")

	w := h.get("/")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "candidate-notifier", body["service"])
	assert.ElementsMatch(t, []interface{}{"email", "sms"}, body["capabilities"])
	endpoints := body["endpoints"].(map[string]interface{})
	assert.Equal(t, "/webhook/job-match", endpoints["webhook"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, "")
	h.post("/webhook/job-match", insertEvent, nil)

	w := h.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "notifier_webhook_events_total")
}
