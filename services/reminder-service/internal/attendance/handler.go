// Package attendance moves appointments into a terminal status and turns
// their reminders off for good.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/storage"
)

var ErrNotFound = errors.New("appointment not found")

type StatusStore interface {
	TransitionStatus(ctx context.Context, id string, to model.Status, at time.Time) (bool, error)
}

type PolicySilencer interface {
	Silence(ctx context.Context, appointmentID string) (policy.Policy, error)
}

type Handler struct {
	appts    StatusStore
	policies PolicySilencer
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(appts StatusStore, policies PolicySilencer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{appts: appts, policies: policies, logger: logger, now: time.Now}
}

// MarkAttended is what staff record after the visit.
func (h *Handler) MarkAttended(ctx context.Context, id string) error {
	return h.transition(ctx, id, model.StatusCompleted)
}

// ConfirmAttendance is the patient-side confirmation. It ends reminders the
// same way MarkAttended does and stamps ConfirmedAt.
func (h *Handler) ConfirmAttendance(ctx context.Context, id string) error {
	return h.transition(ctx, id, model.StatusCompleted)
}

func (h *Handler) MarkNoShow(ctx context.Context, id string) error {
	return h.transition(ctx, id, model.StatusNoShow)
}

// transition silences the policy even when the status was already terminal,
// so retries repair a policy write that failed the first time.
func (h *Handler) transition(ctx context.Context, id string, to model.Status) error {
	changed, err := h.appts.TransitionStatus(ctx, id, to, h.now().UTC())
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("transition appointment %s to %s: %w", id, to, err)
	}
	if _, err := h.policies.Silence(ctx, id); err != nil {
		return fmt.Errorf("silence reminders for %s: %w", id, err)
	}
	if changed {
		h.logger.Info("appointment closed, reminders silenced", "appointment_id", id, "status", string(to))
	}
	return nil
}
