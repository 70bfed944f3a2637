// internal/workers/application/send-notification/models.go
package sendnotification

import (
	"context"

	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/common/observability"
	"candidate-notifier/internal/models"
	"candidate-notifier/internal/store"
)

// Sender delivers one rendered message over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *models.Message) (*models.DeliveryReceipt, error)
}

// Gate bounds the number of concurrently running orchestrations.
type Gate interface {
	Acquire(ctx context.Context) error
	Release()
}

// Dependencies wires the handler. Locker, Journal and Observability are optional.
type Dependencies struct {
	Store         store.Store
	Gate          Gate
	Locker        store.RunLocker
	Journal       store.Journal
	EmailSender   Sender
	SMSSender     Sender
	Observability *observability.Observability
	Logger        logger.Logger
}

// Run results reported to observability.
const (
	RunResultCompleted = "completed"
	RunResultNoOp      = "noop"
	RunResultFailed    = "failed"
	RunResultAbandoned = "abandoned"
)

// No-op reasons.
const (
	ReasonNotFound      = "application not found or already fully notified"
	ReasonRunInProgress = "duplicate run in progress"
)
