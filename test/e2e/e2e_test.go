// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candidate-notifier/internal/api"
	"candidate-notifier/internal/common/admission"
	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/models"
	"candidate-notifier/internal/store"
	sendnotification "candidate-notifier/internal/workers/application/send-notification"
)

const webhookSecret = "e2e-secret"

// recordingSender accepts every message and remembers it.
type recordingSender struct {
	name string

	mu   sync.Mutex
	sent []*models.Message
}

func (s *recordingSender) Name() string { return s.name }

func (s *recordingSender) Send(_ context.Context, msg *models.Message) (*models.DeliveryReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return &models.DeliveryReceipt{
		Provider:  s.name,
		MessageID: fmt.Sprintf("%s-%d", s.name, len(s.sent)),
		SentAt:    time.Now().UTC(),
	}, nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type pipeline struct {
	server     *httptest.Server
	store      *store.MemoryStore
	dispatcher *sendnotification.Dispatcher
	email      *recordingSender
	sms        *recordingSender
}

func startPipeline(t *testing.T) *pipeline {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logger.NewTestLogger(t)
	p := &pipeline{
		store: store.NewMemoryStore(),
		email: &recordingSender{name: "ses"},
		sms:   &recordingSender{name: "sns"},
	}

	gate := admission.New(4)
	handler, err := sendnotification.NewHandler(sendnotification.DefaultConfig(), sendnotification.Dependencies{
		Store:       p.store,
		Gate:        gate,
		Locker:      store.NewRedisRunLocker(rdb, time.Minute),
		EmailSender: p.email,
		SMSSender:   p.sms,
		Logger:      log,
	})
	require.NoError(t, err)

	p.dispatcher = sendnotification.NewDispatcher(handler, 20, log, sendnotification.WithOnClose(gate.Close))

	srv, err := api.New(api.Options{
		Service:        "candidate-notifier",
		Version:        "e2e",
		WebhookSecret:  webhookSecret,
		MonitoredTable: "job_application_tracking",
		Tables: store.Tables{
			Tracking:     "job_application_tracking",
			Candidates:   "auto_apply_cand",
			Requirements: "parsed_requirements",
		},
		Features: api.Features{Store: true, StoreDriver: "memory", Email: true, SMS: true, WebhookSecret: true, RunLock: true},
	}, api.Dependencies{
		Dispatcher: p.dispatcher,
		Admission:  gate,
		Store:      p.store,
		Logger:     log,
	})
	require.NoError(t, err)

	p.server = httptest.NewServer(srv.Routes())
	t.Cleanup(p.server.Close)
	return p
}

func (p *pipeline) post(t *testing.T, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, p.server.URL+"/webhook/job-match", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", webhookSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (p *pipeline) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.dispatcher.Shutdown(ctx))
}

func seed(s *store.MemoryStore) {
	s.Put(models.ApplicationView{
		ApplicationID: "app-100",
		Candidate: models.Candidate{
			ID:          "42",
			Name:        "Priya Raman",
			Email:       "priya@example.com",
			MobilePhone: "98765 43210",
		},
		Requirement: models.Requirement{
			ID:          "R9",
			Title:       "Data Engineer",
			Client:      "Globex",
			Location:    "Pune",
			Description: "Pipelines and warehousing.",
			MatchScore:  0.92,
		},
	})
}

func insertBody(candID, reqID string) string {
	return fmt.Sprintf(`{"type":"INSERT","table":"job_application_tracking","record":{"cand_id":%s,"requirement_id":%q}}`, candID, reqID)
}

// ==========================
// End-to-end Tests
// ==========================

func TestWebhookToDelivery(t *testing.T) {
	p := startPipeline(t)
	seed(p.store)

	resp := p.post(t, insertBody("42", "R9"))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.Equal(t, "accepted", accepted["status"])
	assert.Equal(t, float64(42), accepted["candId"])

	p.drain(t)

	assert.Equal(t, 1, p.email.count())
	assert.Equal(t, 1, p.sms.count())
	assert.Equal(t, "+919876543210", p.sms.sent[0].To)
	assert.Equal(t, "Applied: Data Engineer at Globex (92% match)", p.email.sent[0].Subject)

	marks, ok := p.store.Marks("app-100")
	require.True(t, ok)
	assert.NotNil(t, marks.EmailSentAt)
	assert.NotNil(t, marks.SMSSentAt)
}

func TestDuplicateDeliveriesNotifyOnce(t *testing.T) {
	p := startPipeline(t)
	seed(p.store)

	for i := 0; i < 5; i++ {
		resp := p.post(t, insertBody("42", "R9"))
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	p.drain(t)

	// Overlapping runs either lose the run lock or find nothing owed.
	assert.Equal(t, 1, p.email.count())
	assert.Equal(t, 1, p.sms.count())
}

func TestUnknownApplicationIsAcceptedAndSkipped(t *testing.T) {
	p := startPipeline(t)

	resp := p.post(t, insertBody("7", "missing"))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	p.drain(t)

	assert.Zero(t, p.email.count())
	assert.Zero(t, p.sms.count())
}

func TestRejectedBeforeDispatch(t *testing.T) {
	p := startPipeline(t)
	seed(p.store)

	resp := p.post(t, `{"type":"INSERT","table":"job_application_tracking","record":{"cand_id":42}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = p.post(t, `{"type":"UPDATE","table":"job_application_tracking","record":{"cand_id":42,"requirement_id":"R9"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	p.drain(t)
	assert.Zero(t, p.email.count())
	assert.Zero(t, p.sms.count())
}

func TestHealthReportsDispatcher(t *testing.T) {
	p := startPipeline(t)

	resp, err := http.Get(p.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	dispatcher, ok := body["dispatcher"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(20), dispatcher["capacity"])
}
