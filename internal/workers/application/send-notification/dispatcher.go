// internal/workers/application/send-notification/dispatcher.go
package sendnotification

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/models"
)

var (
	ErrQueueFull = errors.New("dispatcher queue is full")
	ErrStopped   = errors.New("dispatcher is shutting down")
)

// Processor runs one orchestration. *Handler satisfies it.
type Processor interface {
	ProcessApplication(ctx context.Context, event models.ApplicationEvent) (*models.OrchestrationResult, error)
}

// Dispatcher hands accepted events to background runs, one goroutine per
// event. At most capacity runs are unfinished at any time; Submit fails fast
// beyond that instead of blocking the webhook.
type Dispatcher struct {
	processor Processor
	logger    logger.Logger
	slots     chan struct{}
	wg        sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	ctx     context.Context
	cancel  context.CancelFunc
	onClose func()
}

type DispatcherOption func(*Dispatcher)

// WithOnClose registers a hook run once when Shutdown starts, typically
// closing the admission controller so queued runs give up.
func WithOnClose(fn func()) DispatcherOption {
	return func(d *Dispatcher) { d.onClose = fn }
}

func NewDispatcher(processor Processor, capacity int, log logger.Logger, opts ...DispatcherOption) *Dispatcher {
	if capacity < 1 {
		capacity = 1
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		processor: processor,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		slots:     make(chan struct{}, capacity),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit schedules one run for event and returns immediately.
func (d *Dispatcher) Submit(event models.ApplicationEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrStopped
	}

	select {
	case d.slots <- struct{}{}:
	default:
		return ErrQueueFull
	}

	d.wg.Add(1)
	go d.run(event)
	return nil
}

func (d *Dispatcher) run(event models.ApplicationEvent) {
	defer func() {
		<-d.slots
		d.wg.Done()
	}()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("run panicked", map[string]interface{}{
				"candidateId":   event.CandidateID,
				"requirementId": event.RequirementID,
				"panic":         fmt.Sprint(r),
				"stack":         string(debug.Stack()),
			})
		}
	}()

	result, err := d.processor.ProcessApplication(d.ctx, event)
	if err != nil {
		fields := map[string]interface{}{
			"candidateId":   event.CandidateID,
			"requirementId": event.RequirementID,
			"error":         err,
		}
		if result != nil {
			fields["runId"] = result.RunID
		}
		d.logger.Error("run failed", fields)
		return
	}

	d.logger.Debug("run finished", map[string]interface{}{
		"runId":         result.RunID,
		"applicationId": result.ApplicationID,
		"noOp":          result.NoOp,
		"newlySent":     result.NewlySent,
		"duration":      result.Duration.String(),
	})
}

// Pending returns the number of submitted runs that have not finished.
func (d *Dispatcher) Pending() int {
	return len(d.slots)
}

func (d *Dispatcher) Capacity() int {
	return cap(d.slots)
}

// Shutdown rejects new submissions and waits for in-flight runs until ctx
// ends, then cancels them. It returns ctx.Err() when runs were still going.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	if d.onClose != nil {
		d.onClose()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("grace period elapsed, cancelling in-flight runs", map[string]interface{}{
			"pending": d.Pending(),
		})
		d.cancel()
		return ctx.Err()
	}
}
