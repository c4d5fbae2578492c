package storage

import (
	"context"
	"errors"
	"time"

	"github.com/carepulse/portal/libs/db"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("appointment not found")

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, patient_name, patient_email, patient_phone, provider_name,
	scheduled_at, status, kind, COALESCE(meeting_link, ''), contact_channel, reminder_enabled,
	last_reminder_sent_at, one_time_link_sent_at, confirmed_at, created_at`

func (r *AppointmentRepository) ListScheduled(ctx context.Context) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		ORDER BY scheduled_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) CountScheduled(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments WHERE status = 'scheduled'`).Scan(&n)
	return n, err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	return appt, err
}

// RecordReminderSent never moves the timestamp backwards.
func (r *AppointmentRepository) RecordReminderSent(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET last_reminder_sent_at = GREATEST(COALESCE(last_reminder_sent_at, $2), $2),
			updated_at = now()
		WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkLinkSent records the one-time link send. It reports false when the link
// had already been recorded, which keeps the "at most once" rule in one column.
func (r *AppointmentRepository) MarkLinkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET one_time_link_sent_at = $2, updated_at = now()
		WHERE id = $1 AND one_time_link_sent_at IS NULL
	`, id, at.UTC())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionStatus moves a scheduled appointment to a terminal status. It
// reports false, without error, when the appointment was already terminal.
func (r *AppointmentRepository) TransitionStatus(ctx context.Context, id string, to model.Status, at time.Time) (bool, error) {
	changed := false
	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if model.Status(current).Terminal() {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2::text,
				confirmed_at = CASE WHEN $2::text = 'completed' THEN COALESCE(confirmed_at, $3) ELSE confirmed_at END,
				updated_at = now()
			WHERE id = $1
		`, id, string(to), at.UTC())
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// Upsert stores an appointment announced by the booking flow. Reminder
// bookkeeping columns are never overwritten by a replayed event.
func (r *AppointmentRepository) Upsert(ctx context.Context, appt model.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, patient_name, patient_email, patient_phone, provider_name,
			 scheduled_at, status, kind, meeting_link, contact_channel, reminder_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			patient_name = EXCLUDED.patient_name,
			patient_email = EXCLUDED.patient_email,
			patient_phone = EXCLUDED.patient_phone,
			provider_name = EXCLUDED.provider_name,
			scheduled_at = EXCLUDED.scheduled_at,
			kind = EXCLUDED.kind,
			meeting_link = EXCLUDED.meeting_link,
			contact_channel = EXCLUDED.contact_channel,
			updated_at = now()
	`, appt.ID, appt.PatientID, appt.PatientName, appt.PatientEmail, appt.PatientPhone, appt.ProviderName,
		appt.ScheduledAt.UTC(), string(appt.Status), string(appt.Kind), appt.MeetingLink, string(appt.ContactChannel), appt.ReminderEnabled)
	return err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status, kind, channel string
	err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.PatientName,
		&appt.PatientEmail,
		&appt.PatientPhone,
		&appt.ProviderName,
		&appt.ScheduledAt,
		&status,
		&kind,
		&appt.MeetingLink,
		&channel,
		&appt.ReminderEnabled,
		&appt.LastReminderSentAt,
		&appt.OneTimeLinkSentAt,
		&appt.ConfirmedAt,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.Kind = model.Kind(kind)
	appt.ContactChannel = model.Channel(channel)
	return appt, nil
}
