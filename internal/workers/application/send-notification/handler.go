// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"time"

	"candidate-notifier/internal/common/contact"
	"candidate-notifier/internal/common/errors"
	"candidate-notifier/internal/common/logger"
	"candidate-notifier/internal/common/metrics"
	"candidate-notifier/internal/common/observability"
	"candidate-notifier/internal/models"
	"candidate-notifier/internal/store"

	"github.com/google/uuid"
)

// channel is one entry of the channel table. Adding a channel means adding
// one entry here and one Sender.
type channel struct {
	kind    models.Channel
	enabled bool
	sender  Sender
	timeout time.Duration
	owed    func(view *models.ApplicationView) bool
	build   func(view *models.ApplicationView) (*models.Message, error)
	mark    func(ctx context.Context, applicationID string) error
}

type Handler struct {
	config   *Config
	store    store.Store
	gate     Gate
	locker   store.RunLocker
	journal  store.Journal
	obs      *observability.Observability
	logger   logger.Logger
	channels []channel
	now      func() time.Time
}

func NewHandler(cfg *Config, deps Dependencies) (*Handler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = DefaultEmailTimeout
	}
	if cfg.SMSTimeout <= 0 {
		cfg.SMSTimeout = DefaultSMSTimeout
	}
	if cfg.MarkTimeout <= 0 {
		cfg.MarkTimeout = DefaultMarkTimeout
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("admission gate is required")
	}
	if cfg.EmailEnabled && deps.EmailSender == nil {
		return nil, fmt.Errorf("email is enabled but no email sender was provided")
	}
	if cfg.SMSEnabled && deps.SMSSender == nil {
		return nil, fmt.Errorf("sms is enabled but no sms sender was provided")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	journal := deps.Journal
	if journal == nil {
		journal = store.NopJournal{}
	}

	h := &Handler{
		config:  cfg,
		store:   deps.Store,
		gate:    deps.Gate,
		locker:  deps.Locker,
		journal: journal,
		obs:     deps.Observability,
		logger:  log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		now:     func() time.Time { return time.Now().UTC() },
	}

	formatter := contact.NewFormatter(cfg.DefaultCountryCode)
	h.channels = []channel{
		{
			kind:    models.ChannelEmail,
			enabled: cfg.EmailEnabled,
			sender:  deps.EmailSender,
			timeout: cfg.EmailTimeout,
			owed:    func(v *models.ApplicationView) bool { return !v.EmailSent },
			build:   func(v *models.ApplicationView) (*models.Message, error) { return buildEmail(v, h.now()) },
			mark:    deps.Store.MarkEmailSent,
		},
		{
			kind:    models.ChannelSMS,
			enabled: cfg.SMSEnabled,
			sender:  deps.SMSSender,
			timeout: cfg.SMSTimeout,
			owed:    func(v *models.ApplicationView) bool { return !v.SMSSent },
			build:   func(v *models.ApplicationView) (*models.Message, error) { return buildSMS(v, formatter) },
			mark:    deps.Store.MarkSMSSent,
		},
	}

	return h, nil
}

// ProcessApplication runs one orchestration for event. Missing, fully notified
// and concurrently processed applications are no-ops, not errors. Channel
// failures are reported in the result; err is only set when the run itself
// could not proceed.
func (h *Handler) ProcessApplication(ctx context.Context, event models.ApplicationEvent) (result *models.OrchestrationResult, err error) {
	result = &models.OrchestrationResult{
		RunID:     uuid.NewString(),
		NewlySent: map[models.Channel]bool{},
		StartedAt: h.now(),
	}
	log := h.logger.WithFields(map[string]interface{}{
		"runId":         result.RunID,
		"candidateId":   event.CandidateID,
		"requirementId": event.RequirementID,
	})

	if err := h.gate.Acquire(ctx); err != nil {
		log.Warn("run abandoned before admission", map[string]interface{}{"error": err})
		result.Reason = "not admitted"
		h.obs.RecordRun(context.WithoutCancel(ctx), RunResultAbandoned, time.Since(result.StartedAt))
		return result, fmt.Errorf("admission: %w", err)
	}
	defer h.gate.Release()

	defer func() {
		if r := recover(); r != nil {
			log.Error("orchestration panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			err = errors.NewInternalError(fmt.Sprintf("panic: %v", r))
		}
		result.Duration = time.Since(result.StartedAt)
		h.obs.RecordRun(context.WithoutCancel(ctx), runResult(result, err), result.Duration)
	}()

	if h.locker != nil {
		key := event.Key()
		token, ok, lockErr := h.locker.TryLock(ctx, key)
		switch {
		case lockErr != nil:
			log.Warn("run lock unavailable, continuing without it", map[string]interface{}{"error": lockErr})
		case !ok:
			log.Info("skipping run", map[string]interface{}{"reason": ReasonRunInProgress})
			result.NoOp = true
			result.Reason = ReasonRunInProgress
			return result, nil
		default:
			defer h.unlock(ctx, key, token, log)
		}
	}

	view, err := h.store.FindNotifiableApplication(ctx, event.CandidateID, event.RequirementID)
	if stderrors.Is(err, store.ErrNotFound) {
		log.Info("nothing to notify", map[string]interface{}{"reason": ReasonNotFound})
		result.NoOp = true
		result.Reason = ReasonNotFound
		return result, nil
	}
	if err != nil {
		log.Error("failed to load application", map[string]interface{}{"error": err})
		return result, err
	}

	result.ApplicationID = view.ApplicationID
	log = log.WithFields(map[string]interface{}{"applicationId": view.ApplicationID})
	log.Info("processing application", map[string]interface{}{
		"emailSent": view.EmailSent,
		"smsSent":   view.SMSSent,
		"title":     view.Requirement.Title,
	})

	for i := range h.channels {
		ch := &h.channels[i]
		outcome, attempted := h.runChannel(ctx, ch, view, result.RunID, event, log)
		if !attempted {
			continue
		}
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Success {
			result.NewlySent[ch.kind] = true
		}
	}

	return result, nil
}

// runChannel attempts one channel. attempted is false when the channel is
// not owed or disabled; nothing is sent or marked in that case.
func (h *Handler) runChannel(ctx context.Context, ch *channel, view *models.ApplicationView, runID string, event models.ApplicationEvent, log logger.Logger) (models.ChannelOutcome, bool) {
	if !ch.owed(view) {
		log.Debug("channel already sent", map[string]interface{}{"channel": ch.kind})
		return models.ChannelOutcome{}, false
	}
	if !ch.enabled {
		log.Debug("channel disabled", map[string]interface{}{"channel": ch.kind})
		return models.ChannelOutcome{}, false
	}

	outcome := models.ChannelOutcome{Channel: ch.kind}

	receipt, skipped, err := h.attempt(ctx, ch, view, log)
	outcome.Skipped = skipped
	if err == nil {
		outcome.Success = true
		if receipt != nil {
			outcome.ProviderReference = receipt.MessageID
		}
	} else {
		outcome.Permanent = !errors.IsRetryable(err)
		outcome.ErrorCode = string(errors.CodeOf(err))
		outcome.ErrorDetail = err.Error()
	}
	outcome.Timestamp = h.now()

	fields := map[string]interface{}{
		"channel": ch.kind,
		"status":  outcome.Status(),
	}
	switch {
	case outcome.Success:
		fields["providerReference"] = outcome.ProviderReference
		log.Info("notification sent", fields)
	case outcome.Permanent:
		fields["errorCode"] = outcome.ErrorCode
		fields["error"] = outcome.ErrorDetail
		log.Warn("channel failed permanently, marking as handled", fields)
	default:
		fields["errorCode"] = outcome.ErrorCode
		fields["error"] = outcome.ErrorDetail
		log.Error("channel failed, will retry on next event", fields)
	}

	marked := false
	if outcome.Terminal() {
		marked = h.mark(ctx, ch, view.ApplicationID, log)
	}

	metrics.ChannelOutcomesTotal.WithLabelValues(string(ch.kind), outcome.Status()).Inc()
	h.record(ctx, store.OutcomeRecord{
		RunID:             runID,
		ApplicationID:     view.ApplicationID,
		CandidateID:       event.CandidateID,
		RequirementID:     event.RequirementID,
		Channel:           ch.kind,
		Status:            outcome.Status(),
		Marked:            marked,
		ProviderReference: outcome.ProviderReference,
		ErrorCode:         outcome.ErrorCode,
		ErrorDetail:       outcome.ErrorDetail,
		Timestamp:         outcome.Timestamp,
	}, log)

	return outcome, true
}

// attempt builds and sends one channel's message. skipped reports that the
// payload could not be built, so no provider call was made. A panic becomes a
// retryable INTERNAL_ERROR confined to this channel.
func (h *Handler) attempt(ctx context.Context, ch *channel, view *models.ApplicationView, log logger.Logger) (receipt *models.DeliveryReceipt, skipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("channel attempt panicked", map[string]interface{}{
				"channel": ch.kind,
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			})
			receipt, skipped = nil, false
			err = errors.NewInternalError(fmt.Sprintf("%s panic: %v", ch.kind, r))
		}
	}()

	msg, err := ch.build(view)
	if err != nil {
		return nil, true, err
	}
	receipt, err = h.send(ctx, ch, msg)
	return receipt, false, err
}

func (h *Handler) send(ctx context.Context, ch *channel, msg *models.Message) (*models.DeliveryReceipt, error) {
	sendCtx, cancel := context.WithTimeout(ctx, ch.timeout)
	defer cancel()

	start := time.Now()
	receipt, err := ch.sender.Send(sendCtx, msg)
	metrics.ChannelSendDuration.WithLabelValues(string(ch.kind)).Observe(time.Since(start).Seconds())

	if err != nil && errors.IsTimeout(err) {
		if _, ok := errors.AsStandardError(err); !ok {
			err = errors.NewProviderTimeoutError(ch.sender.Name(), err)
		}
	}
	return receipt, err
}

// mark persists the channel flag on a context detached from the run, so a
// cancelled run still records a send that already happened.
func (h *Handler) mark(ctx context.Context, ch *channel, applicationID string, log logger.Logger) bool {
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.MarkTimeout)
	defer cancel()

	if err := ch.mark(markCtx, applicationID); err != nil {
		metrics.MarkFailuresTotal.WithLabelValues(string(ch.kind)).Inc()
		log.Error("failed to persist channel mark", map[string]interface{}{
			"channel": ch.kind,
			"error":   err,
		})
		return false
	}
	return true
}

func (h *Handler) record(ctx context.Context, rec store.OutcomeRecord, log logger.Logger) {
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.MarkTimeout)
	defer cancel()

	if err := h.journal.Record(recCtx, rec); err != nil {
		log.Warn("failed to journal outcome", map[string]interface{}{
			"channel": rec.Channel,
			"error":   err,
		})
	}
}

func (h *Handler) unlock(ctx context.Context, key, token string, log logger.Logger) {
	unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.MarkTimeout)
	defer cancel()

	if err := h.locker.Unlock(unlockCtx, key, token); err != nil {
		log.Warn("failed to release run lock", map[string]interface{}{"error": err})
	}
}

func runResult(result *models.OrchestrationResult, err error) string {
	switch {
	case err != nil:
		return RunResultFailed
	case result.NoOp:
		return RunResultNoOp
	default:
		return RunResultCompleted
	}
}
