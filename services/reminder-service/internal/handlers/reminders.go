package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/schedule"
	"github.com/carepulse/portal/services/reminder-service/internal/storage"
)

type AppointmentReader interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
}

type PolicyStore interface {
	Resolve(ctx context.Context, appointmentID string, optedIn bool) (policy.Policy, error)
	Set(ctx context.Context, appointmentID string, p policy.Policy) (policy.Policy, error)
}

type Ticker interface {
	Tick(ctx context.Context) (dispatcher.Report, error)
}

type ReminderHandler struct {
	appts    AppointmentReader
	policies PolicyStore
	ticker   Ticker
	logger   *slog.Logger
	now      func() time.Time
}

func NewReminderHandler(appts AppointmentReader, policies PolicyStore, ticker Ticker, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{
		appts:    appts,
		policies: policies,
		ticker:   ticker,
		logger:   logger,
		now:      time.Now,
	}
}

type policyRequest struct {
	AppointmentID          string `json:"appointment_id"`
	FrequencyMinutes       int    `json:"frequency_minutes"`
	LeadHours              int    `json:"lead_hours"`
	UrgentThresholdMinutes int    `json:"urgent_threshold_minutes"`
	Enabled                bool   `json:"enabled"`
}

type policyResponse struct {
	AppointmentID          string `json:"appointment_id"`
	FrequencyMinutes       int    `json:"frequency_minutes"`
	LeadHours              int    `json:"lead_hours"`
	UrgentThresholdMinutes int    `json:"urgent_threshold_minutes"`
	Enabled                bool   `json:"enabled"`
	Silenced               bool   `json:"silenced"`
	UpdatedAt              string `json:"updated_at,omitempty"`
}

type plannedItem struct {
	SendAt           string `json:"send_at"`
	MinutesRemaining int    `json:"minutes_remaining"`
	Urgent           bool   `json:"urgent"`
	Deferred         bool   `json:"deferred"`
}

type planResponse struct {
	AppointmentID string         `json:"appointment_id"`
	ScheduledAt   string         `json:"scheduled_at"`
	Passed        bool           `json:"passed"`
	TotalMinutes  int            `json:"total_minutes"`
	Countdown     string         `json:"countdown"`
	Tone          string         `json:"tone,omitempty"`
	Policy        policyResponse `json:"policy"`
	Reminders     []plannedItem  `json:"reminders"`
}

type tickResponse struct {
	Evaluated int `json:"evaluated"`
	Sent      int `json:"sent"`
	LinkSent  int `json:"link_sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Policy serves GET and PUT on the same path.
func (h *ReminderHandler) Policy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getPolicy(w, r)
	case http.MethodPut:
		h.putPolicy(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ReminderHandler) getPolicy(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}
	appt, ok := h.loadAppointment(r.Context(), w, id)
	if !ok {
		return
	}
	p, err := h.policies.Resolve(r.Context(), id, appt.ReminderEnabled)
	if err != nil {
		h.logger.Error("load policy failed", "appointment_id", id, "err", err)
		http.Error(w, "policy store error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyResponse(id, p))
}

func (h *ReminderHandler) putPolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}
	if req.UrgentThresholdMinutes == 0 {
		req.UrgentThresholdMinutes = policy.DefaultUrgentThresholdMinutes
	}

	appt, ok := h.loadAppointment(r.Context(), w, req.AppointmentID)
	if !ok {
		return
	}
	if appt.Status.Terminal() {
		http.Error(w, "appointment is "+string(appt.Status)+"; reminders are closed", http.StatusConflict)
		return
	}

	p, err := h.policies.Set(r.Context(), req.AppointmentID, policy.Policy{
		FrequencyMinutes:       req.FrequencyMinutes,
		LeadHours:              req.LeadHours,
		UrgentThresholdMinutes: req.UrgentThresholdMinutes,
		Enabled:                req.Enabled,
	})
	if errors.Is(err, policy.ErrInvalidPolicy) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("save policy failed", "appointment_id", req.AppointmentID, "err", err)
		http.Error(w, "policy store error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyResponse(req.AppointmentID, p))
}

func (h *ReminderHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}
	appt, ok := h.loadAppointment(r.Context(), w, id)
	if !ok {
		return
	}
	p, err := h.policies.Resolve(r.Context(), id, appt.ReminderEnabled)
	if err != nil {
		h.logger.Error("load policy failed", "appointment_id", id, "err", err)
		http.Error(w, "policy store error", http.StatusInternalServerError)
		return
	}

	now := h.now()
	cd := countdown.Remaining(now, appt.ScheduledAt)
	resp := planResponse{
		AppointmentID: id,
		ScheduledAt:   appt.ScheduledAt.UTC().Format(time.RFC3339),
		Passed:        cd.Passed,
		TotalMinutes:  cd.TotalMinutes,
		Countdown:     cd.Text,
		Policy:        toPolicyResponse(id, p),
		Reminders:     []plannedItem{},
	}
	if !cd.Passed {
		resp.Tone = string(countdown.ToneFor(cd.TotalMinutes))
	}
	// the preview is empty whenever the dispatcher would not send anything
	if p.Enabled && appt.Status == model.StatusScheduled {
		for _, pr := range schedule.Plan(appt, p, now) {
			resp.Reminders = append(resp.Reminders, plannedItem{
				SendAt:           pr.SendAt.UTC().Format(time.RFC3339),
				MinutesRemaining: pr.MinutesRemaining,
				Urgent:           pr.Urgent,
				Deferred:         pr.Deferred,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Tick runs one dispatcher pass now.
func (h *ReminderHandler) Tick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report, err := h.ticker.Tick(r.Context())
	if errors.Is(err, dispatcher.ErrTickInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.Error("manual tick failed", "err", err)
		http.Error(w, "tick failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tickResponse{
		Evaluated: report.Evaluated,
		Sent:      report.Sent,
		LinkSent:  report.LinkSent,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
	})
}

func (h *ReminderHandler) loadAppointment(ctx context.Context, w http.ResponseWriter, id string) (model.Appointment, bool) {
	appt, err := h.appts.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return model.Appointment{}, false
	}
	if err != nil {
		h.logger.Error("load appointment failed", "appointment_id", id, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return model.Appointment{}, false
	}
	return appt, true
}

func toPolicyResponse(id string, p policy.Policy) policyResponse {
	resp := policyResponse{
		AppointmentID:          id,
		FrequencyMinutes:       p.FrequencyMinutes,
		LeadHours:              p.LeadHours,
		UrgentThresholdMinutes: p.UrgentThresholdMinutes,
		Enabled:                p.Enabled,
		Silenced:               p.Silenced,
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
