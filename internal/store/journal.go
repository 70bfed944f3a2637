package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"candidate-notifier/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// OutcomeRecord is one journaled channel attempt.
type OutcomeRecord struct {
	RunID             string         `json:"runId"`
	ApplicationID     string         `json:"applicationId"`
	CandidateID       string         `json:"candidateId"`
	RequirementID     string         `json:"requirementId"`
	Channel           models.Channel `json:"channel"`
	Status            string         `json:"status"`
	Marked            bool           `json:"marked"`
	ProviderReference string         `json:"providerReference,omitempty"`
	ErrorCode         string         `json:"errorCode,omitempty"`
	ErrorDetail       string         `json:"errorDetail,omitempty"`
	Timestamp         time.Time      `json:"@timestamp"`
}

// Journal is an append-only sink for channel outcomes.
type Journal interface {
	Record(ctx context.Context, rec OutcomeRecord) error
}

type NopJournal struct{}

func (NopJournal) Record(context.Context, OutcomeRecord) error { return nil }

// ElasticsearchJournal indexes one document per outcome.
type ElasticsearchJournal struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchJournal(client *elasticsearch.Client, index string) *ElasticsearchJournal {
	return &ElasticsearchJournal{client: client, index: index}
}

func (j *ElasticsearchJournal) Record(ctx context.Context, rec OutcomeRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      j.index,
		DocumentID: uuid.NewString(),
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, j.client)
	if err != nil {
		return fmt.Errorf("index outcome: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index outcome failed: %s", res.String())
	}
	return nil
}
