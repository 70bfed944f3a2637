package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"candidate-notifier/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	status   int
	requests []*http.Request
	bodies   []string
}

func (f *fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, r)
	if r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		f.bodies = append(f.bodies, string(b))
	}
	h := http.Header{}
	h.Set("X-Elastic-Product", "Elasticsearch")
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: f.status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(`{"result":"created"}`)),
	}, nil
}

func newTestJournal(t *testing.T, status int) (*ElasticsearchJournal, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{status: status}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.local:9200"},
		Transport: ft,
	})
	require.NoError(t, err)
	return NewElasticsearchJournal(client, "notification-outcomes"), ft
}

func TestElasticsearchJournal_Record(t *testing.T) {
	j, ft := newTestJournal(t, http.StatusCreated)

	err := j.Record(context.Background(), OutcomeRecord{
		RunID:         "run-1",
		ApplicationID: "101",
		Channel:       models.ChannelSMS,
		Status:        "skipped",
		Marked:        true,
		ErrorCode:     "NO_CONTACT",
		Timestamp:     time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, ft.requests, 1)
	assert.Equal(t, http.MethodPut, ft.requests[0].Method)
	assert.True(t, strings.HasPrefix(ft.requests[0].URL.Path, "/notification-outcomes/_doc/"))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ft.bodies[0]), &doc))
	assert.Equal(t, "SMS", doc["channel"])
	assert.Equal(t, "NO_CONTACT", doc["errorCode"])
	assert.Equal(t, "2026-10-01T09:00:00Z", doc["@timestamp"])
}

func TestElasticsearchJournal_ErrorResponse(t *testing.T) {
	j, _ := newTestJournal(t, http.StatusBadRequest)

	err := j.Record(context.Background(), OutcomeRecord{RunID: "run-1"})
	assert.Error(t, err)
}

func TestNopJournal(t *testing.T) {
	assert.NoError(t, NopJournal{}.Record(context.Background(), OutcomeRecord{}))
}
