// internal/models/notification.go
package models

import "time"

type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// Message is a rendered payload ready for a sender.
type Message struct {
	Channel     Channel `json:"channel"`
	To          string  `json:"to"`
	Subject     string  `json:"subject,omitempty"`
	Body        string  `json:"body"`
	TextBody    string  `json:"textBody,omitempty"`
	Application string  `json:"applicationId"`
}

// ChannelOutcome is the result of one attempt on one channel. Skipped means
// no provider call was made.
type ChannelOutcome struct {
	Channel           Channel   `json:"channel"`
	Success           bool      `json:"success"`
	Permanent         bool      `json:"permanent"`
	Skipped           bool      `json:"skipped"`
	ProviderReference string    `json:"providerReference,omitempty"`
	ErrorCode         string    `json:"errorCode,omitempty"`
	ErrorDetail       string    `json:"errorDetail,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Terminal reports whether the channel should be marked sent (or sent-equivalent).
func (o ChannelOutcome) Terminal() bool {
	return o.Success || o.Permanent
}

// Status is the outcome label used by metrics and the journal.
func (o ChannelOutcome) Status() string {
	switch {
	case o.Success:
		return "sent"
	case o.Permanent && o.Skipped:
		return "skipped"
	case o.Permanent:
		return "permanent_failure"
	default:
		return "transient_failure"
	}
}

type NotificationMarks struct {
	EmailSentAt *time.Time `json:"emailSentAt,omitempty"`
	SMSSentAt   *time.Time `json:"smsSentAt,omitempty"`
}

type OrchestrationResult struct {
	RunID         string           `json:"runId"`
	ApplicationID string           `json:"applicationId,omitempty"`
	NewlySent     map[Channel]bool `json:"newlySent"`
	Outcomes      []ChannelOutcome `json:"outcomes,omitempty"`
	NoOp          bool             `json:"noOp"`
	Reason        string           `json:"reason,omitempty"`
	StartedAt     time.Time        `json:"startedAt"`
	Duration      time.Duration    `json:"duration"`
}

// DeliveryReceipt is what a provider returns for an accepted message.
type DeliveryReceipt struct {
	Provider   string    `json:"provider"`
	MessageID  string    `json:"messageId,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
	SentAt     time.Time `json:"sentAt"`
}
