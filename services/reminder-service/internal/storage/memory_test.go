package storage

import (
	"context"
	"testing"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAppointmentsBookkeeping(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	store := NewMemoryAppointments(
		model.Appointment{ID: "b", ScheduledAt: now.Add(2 * time.Hour), Status: model.StatusScheduled},
		model.Appointment{ID: "a", ScheduledAt: now.Add(time.Hour), Status: model.StatusScheduled},
		model.Appointment{ID: "c", ScheduledAt: now.Add(time.Hour), Status: model.StatusCancelled},
	)
	ctx := context.Background()

	list, err := store.ListScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	require.NoError(t, store.RecordReminderSent(ctx, "a", now))
	require.NoError(t, store.RecordReminderSent(ctx, "a", now.Add(-time.Hour)))
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, now, *got.LastReminderSentAt, "last sent never moves backwards")

	ok, err := store.MarkLinkSent(ctx, "a", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.MarkLinkSent(ctx, "a", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	changed, err := store.TransitionStatus(ctx, "a", model.StatusCompleted, now)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.TransitionStatus(ctx, "a", model.StatusNoShow, now)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = store.TransitionStatus(ctx, "missing", model.StatusCompleted, now)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.CountScheduled(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryUpsertKeepsBookkeeping(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	store := NewMemoryAppointments()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, model.Appointment{ID: "a", ScheduledAt: now, Status: model.StatusScheduled}))
	require.NoError(t, store.RecordReminderSent(ctx, "a", now))
	require.NoError(t, store.Upsert(ctx, model.Appointment{ID: "a", ScheduledAt: now.Add(time.Hour), Status: model.StatusScheduled}))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), got.ScheduledAt)
	require.NotNil(t, got.LastReminderSentAt)
}
