package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carepulse/portal/services/reminder-service/internal/attendance"
)

type Attendance interface {
	MarkAttended(ctx context.Context, id string) error
	MarkNoShow(ctx context.Context, id string) error
	ConfirmAttendance(ctx context.Context, id string) error
}

type AppointmentHandler struct {
	attendance Attendance
	appts      AppointmentReader
	logger     *slog.Logger
}

func NewAppointmentHandler(att Attendance, appts AppointmentReader, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{attendance: att, appts: appts, logger: logger}
}

type attendanceRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type attendanceResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *AppointmentHandler) Attended(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.attendance.MarkAttended)
}

func (h *AppointmentHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.attendance.MarkNoShow)
}

func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.attendance.ConfirmAttendance)
}

func (h *AppointmentHandler) handle(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := op(ctx, id); err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("attendance update failed", "appointment_id", id, "err", err)
		http.Error(w, "attendance update failed", http.StatusInternalServerError)
		return
	}

	appt, err := h.appts.Get(ctx, id)
	if err != nil {
		h.logger.Error("load appointment failed", "appointment_id", id, "err", err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, attendanceResponse{AppointmentID: id, Status: string(appt.Status)})
}
