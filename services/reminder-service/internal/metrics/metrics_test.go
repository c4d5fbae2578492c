package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCountTicksAndSends(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.TickCompleted(dispatcher.Report{Sent: 1}, 20*time.Millisecond, nil)
	m.TickCompleted(dispatcher.Report{}, time.Millisecond, errors.New("db down"))
	m.TickSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("overlap")))

	ctx := context.Background()
	m.Observe(ctx, dispatcher.Event{Kind: dispatcher.EventReminder, Tone: countdown.ToneUrgent})
	m.Observe(ctx, dispatcher.Event{Kind: dispatcher.EventReminder, Tone: countdown.ToneUrgent})
	m.Observe(ctx, dispatcher.Event{Kind: dispatcher.EventLink, Tone: countdown.ToneNormal, Err: errors.New("smtp")})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sends.WithLabelValues("reminder", "urgent", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sends.WithLabelValues("link", "normal", "failed")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.TickCompleted(dispatcher.Report{}, time.Second, nil)
	m.TickSkipped()
	m.Observe(context.Background(), dispatcher.Event{})
}
