// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_webhook_events_total",
			Help: "Webhook events by result (accepted, ignored, rejected, unavailable)",
		},
		[]string{"result"},
	)

	ChannelOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_channel_outcomes_total",
			Help: "Channel attempts by channel and status",
		},
		[]string{"channel", "status"},
	)

	ChannelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_channel_send_duration_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	MarkFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_mark_failures_total",
			Help: "Failed attempts to persist a channel mark",
		},
		[]string{"channel"},
	)
)

// RegisterRuntimeGauges exposes admission and dispatcher occupancy, sampled at
// scrape time. Call once per registry.
func RegisterRuntimeGauges(reg prometheus.Registerer, admission func() (active, waiting int), pending func() int) {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "notifier_admission_active",
			Help: "Orchestration runs currently holding an admission slot",
		},
		func() float64 {
			active, _ := admission()
			return float64(active)
		},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "notifier_admission_waiting",
			Help: "Orchestration runs waiting for an admission slot",
		},
		func() float64 {
			_, waiting := admission()
			return float64(waiting)
		},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "notifier_dispatcher_pending",
			Help: "Submitted runs that have not finished",
		},
		func() float64 { return float64(pending()) },
	)
}
