// Package metrics exposes Prometheus collectors for the reminder loop.
package metrics

import (
	"context"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reminder"

// Metrics implements dispatcher.Recorder and dispatcher.Observer.
type Metrics struct {
	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
	lastTick     prometheus.Gauge
	sends        *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg and panics on a
// registration error, the same way promauto does.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatcher",
				Name:      "ticks_total",
				Help:      "Reminder ticks by result (ok, error, overlap).",
			},
			[]string{"result"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatcher",
				Name:      "tick_duration_seconds",
				Help:      "Time spent evaluating all scheduled appointments.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		lastTick: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "dispatcher",
				Name:      "last_tick_timestamp_seconds",
				Help:      "Unix time of the last completed tick.",
			},
		),
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "sends_total",
				Help:      "Reminder send attempts by kind, tone and result.",
			},
			[]string{"kind", "tone", "result"},
		),
	}
	reg.MustRegister(m.ticks, m.tickDuration, m.lastTick, m.sends)
	return m
}

func (m *Metrics) TickCompleted(_ dispatcher.Report, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(took.Seconds())
	m.lastTick.SetToCurrentTime()
}

func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues("overlap").Inc()
}

func (m *Metrics) Observe(_ context.Context, ev dispatcher.Event) {
	if m == nil {
		return
	}
	result := "sent"
	if ev.Failed() {
		result = "failed"
	}
	m.sends.WithLabelValues(string(ev.Kind), string(ev.Tone), result).Inc()
}
