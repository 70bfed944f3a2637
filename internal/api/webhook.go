package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "candidate-notifier/internal/common/errors"
	"candidate-notifier/internal/common/metrics"
	"candidate-notifier/internal/models"
	sendnotification "candidate-notifier/internal/workers/application/send-notification"
)

const secretHeader = "X-Webhook-Secret"

// Identifier spellings accepted on the inserted row, in precedence order.
var (
	candidateKeys   = []string{"candidateId", "candId", "candidate_id", "cand_id"}
	requirementKeys = []string{"requirementId", "requirement_id"}
)

// Webhook event results.
const (
	resultAccepted     = "accepted"
	resultIgnored      = "ignored"
	resultRejected     = "rejected"
	resultUnauthorized = "unauthorized"
	resultUnavailable  = "unavailable"
	resultError        = "error"
)

type changeEvent struct {
	Type      string                     `json:"type"`
	Table     string                     `json:"table"`
	Schema    string                     `json:"schema"`
	Record    map[string]json.RawMessage `json:"record"`
	OldRecord json.RawMessage            `json:"old_record"`
}

type ignoredResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type acceptedResponse struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	CandidateID   json.RawMessage `json:"candidateId"`
	CandID        json.RawMessage `json:"candId"`
	RequirementID json.RawMessage `json:"requirementId"`
	Timestamp     string          `json:"timestamp"`
}

func (s *Server) handleJobMatch(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("invalid webhook secret", map[string]interface{}{"remote": r.RemoteAddr})
		s.reject(w, http.StatusUnauthorized, resultUnauthorized, apperrors.NewUnauthorizedError())
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError(err.Error()))
		return
	}

	var event changeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError("body is not a JSON object"))
		return
	}

	result, err := s.envelope.Validate(body)
	if err != nil {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError(err.Error()))
		return
	}
	if !result.Valid {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError("Invalid payload structure"), result.Messages()...)
		return
	}

	recordJSON, _ := json.Marshal(event.Record)
	result, err = s.record.Validate(recordJSON)
	if err != nil || !result.Valid {
		var details []string
		if result != nil {
			details = result.Messages()
		}
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError("record is missing candidate or requirement identifier"), details...)
		return
	}

	rawCandidate, candidateID := pickIdentifier(event.Record, candidateKeys)
	rawRequirement, requirementID := pickIdentifier(event.Record, requirementKeys)
	if candidateID == "" || requirementID == "" {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError("cand_id and requirement_id required"))
		return
	}

	s.logger.Info("webhook received", map[string]interface{}{
		"type":          event.Type,
		"table":         event.Table,
		"candidateId":   candidateID,
		"requirementId": requirementID,
	})

	if models.EventType(event.Type) != models.EventInsert {
		s.ignore(w, fmt.Sprintf("Event type '%s' not processed", event.Type))
		return
	}
	if event.Table != s.opts.MonitoredTable {
		s.ignore(w, fmt.Sprintf("Table '%s' not monitored", event.Table))
		return
	}

	s.submit(w, models.ApplicationEvent{
		CandidateID:      candidateID,
		RequirementID:    requirementID,
		EventType:        models.EventInsert,
		TableName:        event.Table,
		RawCandidateID:   rawCandidate,
		RawRequirementID: rawRequirement,
		ReceivedAt:       s.now(),
	})
}

type replayRequest struct {
	CandidateID   json.RawMessage `json:"candidateId"`
	RequirementID json.RawMessage `json:"requirementId"`
}

// handleReplay re-runs orchestration for one application, bypassing the
// event filter. Marks make this safe to call repeatedly.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.reject(w, http.StatusUnauthorized, resultUnauthorized, apperrors.NewUnauthorizedError())
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError(err.Error()))
		return
	}

	result, err := s.replay.Validate(body)
	if err != nil {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError("body is not valid JSON"))
		return
	}
	if !result.Valid {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError("Invalid payload structure"), result.Messages()...)
		return
	}

	var req replayRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError(err.Error()))
		return
	}

	candidateID := identifierValue(req.CandidateID)
	requirementID := identifierValue(req.RequirementID)
	if candidateID == "" || requirementID == "" {
		s.reject(w, http.StatusBadRequest, resultRejected, apperrors.NewInvalidPayloadError("candidateId and requirementId required"))
		return
	}

	s.logger.Info("manual replay requested", map[string]interface{}{
		"candidateId":   candidateID,
		"requirementId": requirementID,
	})

	s.submit(w, models.ApplicationEvent{
		CandidateID:      candidateID,
		RequirementID:    requirementID,
		EventType:        models.EventInsert,
		TableName:        s.opts.MonitoredTable,
		RawCandidateID:   req.CandidateID,
		RawRequirementID: req.RequirementID,
		ReceivedAt:       s.now(),
	})
}

func (s *Server) submit(w http.ResponseWriter, event models.ApplicationEvent) {
	err := s.dispatcher.Submit(event)
	switch {
	case err == nil:
	case errors.Is(err, sendnotification.ErrQueueFull), errors.Is(err, sendnotification.ErrStopped):
		s.logger.Warn("notification run not accepted", map[string]interface{}{
			"candidateId":   event.CandidateID,
			"requirementId": event.RequirementID,
			"error":         err,
		})
		metrics.WebhookEventsTotal.WithLabelValues(resultUnavailable).Inc()
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	default:
		s.logger.Error("failed to queue notification run", map[string]interface{}{"error": err})
		metrics.WebhookEventsTotal.WithLabelValues(resultError).Inc()
		writeError(w, http.StatusInternalServerError, string(apperrors.ErrCodeInternal), "failed to queue notifications")
		return
	}

	s.logger.Info("notification run queued", map[string]interface{}{
		"candidateId":   event.CandidateID,
		"requirementId": event.RequirementID,
	})
	metrics.WebhookEventsTotal.WithLabelValues(resultAccepted).Inc()

	writeJSON(w, http.StatusAccepted, acceptedResponse{
		Status: "accepted",
		Message: fmt.Sprintf("Email and SMS notifications queued for cand_id: %s, requirement_id: %s",
			event.CandidateID, event.RequirementID),
		CandidateID:   event.RawCandidateID,
		CandID:        event.RawCandidateID,
		RequirementID: event.RawRequirementID,
		Timestamp:     event.ReceivedAt.Format(time.RFC3339Nano),
	})
}

func (s *Server) ignore(w http.ResponseWriter, reason string) {
	s.logger.Info("webhook ignored", map[string]interface{}{"reason": reason})
	metrics.WebhookEventsTotal.WithLabelValues(resultIgnored).Inc()
	writeJSON(w, http.StatusOK, ignoredResponse{Status: "ignored", Reason: reason})
}

func (s *Server) reject(w http.ResponseWriter, status int, result string, err *apperrors.StandardError, details ...string) {
	if status != http.StatusUnauthorized {
		s.logger.Warn("webhook rejected", map[string]interface{}{
			"code":    err.Code,
			"error":   err.Details,
			"details": details,
		})
	}
	metrics.WebhookEventsTotal.WithLabelValues(result).Inc()

	msg := err.Message
	if err.Details != "" {
		msg = err.Details
	}
	writeError(w, status, string(err.Code), msg, details...)
}

// authorized compares the shared secret in constant time. An empty configured
// secret leaves the endpoint open.
func (s *Server) authorized(r *http.Request) bool {
	if s.opts.WebhookSecret == "" {
		return true
	}
	got := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) == 1
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// pickIdentifier returns the first key present with a non-null value, both
// as received and as a normalised string.
func pickIdentifier(record map[string]json.RawMessage, keys []string) (json.RawMessage, string) {
	for _, key := range keys {
		raw, ok := record[key]
		if !ok || isNull(raw) {
			continue
		}
		return raw, identifierValue(raw)
	}
	return nil, ""
}

// identifierValue renders a JSON number or string as an identifier. Zero,
// blank strings, strings containing NUL and any other JSON type yield "".
func identifierValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err != nil || f == 0 {
			return ""
		}
		return t.String()
	case string:
		if strings.ContainsRune(t, 0) {
			return ""
		}
		return strings.TrimSpace(t)
	default:
		return ""
	}
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
