package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/attendance"
	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type stubTicker struct {
	report dispatcher.Report
	err    error
}

func (s stubTicker) Tick(context.Context) (dispatcher.Report, error) {
	return s.report, s.err
}

type env struct {
	appts    *storage.MemoryAppointments
	policies *policy.Store
	reminder *ReminderHandler
	appt     *AppointmentHandler
}

func newEnv(t *testing.T, ticker Ticker) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appts := storage.NewMemoryAppointments(model.Appointment{
		ID:              "appt-1",
		ScheduledAt:     testNow.Add(2 * time.Hour),
		Status:          model.StatusScheduled,
		Kind:            model.KindInPerson,
		ReminderEnabled: true,
	})
	policies := policy.NewStore(policy.NewMemoryBackend(), logger)
	rh := NewReminderHandler(appts, policies, ticker, logger)
	rh.now = func() time.Time { return testNow }
	return &env{
		appts:    appts,
		policies: policies,
		reminder: rh,
		appt:     NewAppointmentHandler(attendance.NewHandler(appts, policies, logger), appts, logger),
	}
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestGetPolicyDefaults(t *testing.T) {
	e := newEnv(t, stubTicker{})

	rec := do(e.reminder.Policy, http.MethodGet, "/api/v1/reminders/policy?appointment_id=appt-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp policyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 30, resp.FrequencyMinutes)
	assert.Equal(t, 24, resp.LeadHours)
	assert.True(t, resp.Enabled)

	rec = do(e.reminder.Policy, http.MethodGet, "/api/v1/reminders/policy?appointment_id=missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e.reminder.Policy, http.MethodGet, "/api/v1/reminders/policy", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutPolicy(t *testing.T) {
	e := newEnv(t, stubTicker{})

	rec := do(e.reminder.Policy, http.MethodPut, "/api/v1/reminders/policy",
		`{"appointment_id":"appt-1","frequency_minutes":5,"lead_hours":6,"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p, err := e.policies.Get(context.Background(), "appt-1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.FrequencyMinutes)
	assert.Equal(t, 6, p.LeadHours)
	assert.Equal(t, policy.DefaultUrgentThresholdMinutes, p.UrgentThresholdMinutes)

	rec = do(e.reminder.Policy, http.MethodPut, "/api/v1/reminders/policy",
		`{"appointment_id":"appt-1","frequency_minutes":7,"lead_hours":6,"enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e.reminder.Policy, http.MethodDelete, "/api/v1/reminders/policy", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPutPolicyRejectedAfterAttendance(t *testing.T) {
	e := newEnv(t, stubTicker{})

	rec := do(e.appt.Attended, http.MethodPost, "/api/v1/appointments/attended", `{"appointment_id":"appt-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var att attendanceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&att))
	assert.Equal(t, "completed", att.Status)

	rec = do(e.reminder.Policy, http.MethodPut, "/api/v1/reminders/policy",
		`{"appointment_id":"appt-1","frequency_minutes":5,"lead_hours":6,"enabled":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	p, err := e.policies.Get(context.Background(), "appt-1")
	require.NoError(t, err)
	assert.False(t, p.Enabled)
}

func TestAttendanceUnknownAppointment(t *testing.T) {
	e := newEnv(t, stubTicker{})

	rec := do(e.appt.NoShow, http.MethodPost, "/api/v1/appointments/no-show", `{"appointment_id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e.appt.Confirm, http.MethodGet, "/api/v1/appointments/confirm", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPlan(t *testing.T) {
	e := newEnv(t, stubTicker{})

	rec := do(e.reminder.Plan, http.MethodGet, "/api/v1/reminders/plan?appointment_id=appt-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp planResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 120, resp.TotalMinutes)
	assert.Equal(t, "2h 0min", resp.Countdown)
	assert.Equal(t, "soon", resp.Tone)
	require.Len(t, resp.Reminders, 4)
	assert.Equal(t, 120, resp.Reminders[0].MinutesRemaining)
	assert.False(t, resp.Reminders[0].Urgent)
	assert.True(t, resp.Reminders[2].Urgent)
}

func TestTick(t *testing.T) {
	e := newEnv(t, stubTicker{report: dispatcher.Report{Evaluated: 2, Sent: 1, Skipped: 1}})
	rec := do(e.reminder.Tick, http.MethodPost, "/api/v1/reminders/tick", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp tickResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, tickResponse{Evaluated: 2, Sent: 1, Skipped: 1}, resp)

	busy := newEnv(t, stubTicker{err: dispatcher.ErrTickInProgress})
	rec = do(busy.reminder.Tick, http.MethodPost, "/api/v1/reminders/tick", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetPolicyHonoursBookingOptOut(t *testing.T) {
	e := newEnv(t, stubTicker{})
	require.NoError(t, e.appts.Upsert(context.Background(), model.Appointment{
		ID:          "appt-2",
		ScheduledAt: testNow.Add(2 * time.Hour),
		Status:      model.StatusScheduled,
		Kind:        model.KindInPerson,
	}))

	rec := do(e.reminder.Policy, http.MethodGet, "/api/v1/reminders/policy?appointment_id=appt-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp policyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Enabled)

	rec = do(e.reminder.Plan, http.MethodGet, "/api/v1/reminders/plan?appointment_id=appt-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var plan planResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plan))
	assert.Empty(t, plan.Reminders)
}
