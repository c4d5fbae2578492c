// Package dispatcher runs the reminder polling loop.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/notify"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultInterval = 60 * time.Second

var ErrTickInProgress = errors.New("reminder tick already in progress")

type AppointmentStore interface {
	ListScheduled(ctx context.Context) ([]model.Appointment, error)
	CountScheduled(ctx context.Context) (int, error)
	RecordReminderSent(ctx context.Context, id string, at time.Time) error
	MarkLinkSent(ctx context.Context, id string, at time.Time) (bool, error)
}

// PolicyReader resolves an appointment's policy, falling back to the
// appointment's own opt-in when no record is stored.
type PolicyReader interface {
	Resolve(ctx context.Context, appointmentID string, optedIn bool) (policy.Policy, error)
}

type Config struct {
	Interval time.Duration
	Observer Observer
	Recorder Recorder
	Now      func() time.Time
}

// Dispatcher owns the single reminder loop of the process. Build it once and
// hand the pointer to whatever needs to (re)start it.
type Dispatcher struct {
	store    AppointmentStore
	policies PolicyReader
	sender   notify.Sender
	observer Observer
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inTick atomic.Bool
	// unsaved is only touched from inside Tick, which inTick serialises.
	unsaved map[string]pendingWrite
}

// pendingWrite remembers sends whose bookkeeping write failed. It stands in for
// the stored timestamps until a retried write succeeds, so a store outage
// does not turn into duplicate messages.
type pendingWrite struct {
	reminderAt time.Time
	linkAt     time.Time
}

func (u pendingWrite) empty() bool { return u.reminderAt.IsZero() && u.linkAt.IsZero() }

func New(store AppointmentStore, policies PolicyReader, sender notify.Sender, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Observer == nil {
		cfg.Observer = Observers(nil)
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:    store,
		policies: policies,
		sender:   sender,
		observer: cfg.Observer,
		recorder: cfg.Recorder,
		logger:   logger,
		tracer:   otel.Tracer("reminder-dispatcher"),
		interval: cfg.Interval,
		now:      cfg.Now,
		unsaved:  map[string]pendingWrite{},
	}
}

// Start replaces any running loop with a new one bound to ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.startLocked(ctx)
}

// EnsureRunning starts the loop unless one is already running. It is called
// with per-message contexts, so the loop keeps ctx's values but not its
// cancellation; only Stop ends it.
func (d *Dispatcher) EnsureRunning(ctx context.Context) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return false
	}
	d.startLocked(context.WithoutCancel(ctx))
	return true
}

// StartIfPending starts the loop only when there is something to remind about.
func (d *Dispatcher) StartIfPending(ctx context.Context) (bool, error) {
	n, err := d.store.CountScheduled(ctx)
	if err != nil {
		return false, fmt.Errorf("count scheduled appointments: %w", err)
	}
	if n == 0 {
		d.logger.Info("no scheduled appointments, reminder loop idle")
		return false, nil
	}
	d.Start(ctx)
	return true, nil
}

// Stop cancels the loop and waits for an in-flight tick to return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

func (d *Dispatcher) startLocked(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	go d.run(loopCtx, done)
	d.logger.Info("reminder loop started", "interval", d.interval.String())
}

func (d *Dispatcher) stopLocked() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	d.cancel = nil
	d.done = nil
	d.logger.Info("reminder loop stopped")
}

// run ticks immediately, then re-arms the timer only after each tick has
// finished, so a slow tick delays the next one instead of overlapping it.
func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			report, err := d.Tick(ctx)
			switch {
			case errors.Is(err, ErrTickInProgress):
				d.logger.Debug("reminder tick skipped, previous tick still running")
			case err != nil && ctx.Err() == nil:
				d.logger.Error("reminder tick failed", "err", err)
			case err == nil && (report.Sent > 0 || report.LinkSent > 0 || report.Failed > 0):
				d.logger.Info("reminder tick",
					"evaluated", report.Evaluated,
					"sent", report.Sent,
					"link_sent", report.LinkSent,
					"failed", report.Failed,
				)
			}
			timer.Reset(d.interval)
		}
	}
}

// Tick evaluates every scheduled appointment once. A Tick that starts while
// another is in flight returns ErrTickInProgress without doing any work.
func (d *Dispatcher) Tick(ctx context.Context) (Report, error) {
	if !d.inTick.CompareAndSwap(false, true) {
		d.recorder.TickSkipped()
		return Report{}, ErrTickInProgress
	}
	defer d.inTick.Store(false)

	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "reminder.tick")
	defer span.End()

	report, err := d.tick(ctx)
	d.recorder.TickCompleted(report, time.Since(start), err)

	span.SetAttributes(
		attribute.Int("reminder.evaluated", report.Evaluated),
		attribute.Int("reminder.sent", report.Sent),
		attribute.Int("reminder.link_sent", report.LinkSent),
		attribute.Int("reminder.failed", report.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeLinkSent
	outcomeFailed
)

func (d *Dispatcher) tick(ctx context.Context) (Report, error) {
	appts, err := d.store.ListScheduled(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list scheduled appointments: %w", err)
	}

	var report Report
	seen := make(map[string]struct{}, len(appts))
	for _, appt := range appts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if appt.Status != model.StatusScheduled {
			continue
		}
		seen[appt.ID] = struct{}{}
		report.Evaluated++
		d.reconcile(ctx, &appt)

		p, err := d.policies.Resolve(ctx, appt.ID, appt.ReminderEnabled)
		if err != nil {
			d.logger.Error("reminder policy unavailable", "appointment_id", appt.ID, "err", err)
			report.Skipped++
			continue
		}

		switch d.evaluate(ctx, appt, p) {
		case outcomeSent:
			report.Sent++
		case outcomeLinkSent:
			report.LinkSent++
		case outcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
	}
	d.forgetUnsaved(seen)
	return report, nil
}

func (d *Dispatcher) evaluate(ctx context.Context, appt model.Appointment, p policy.Policy) outcome {
	now := d.now()
	cd := countdown.Remaining(now, appt.ScheduledAt)
	if cd.Passed {
		return outcomeSkipped
	}

	if !p.Enabled {
		if appt.Remote() && appt.OneTimeLinkSentAt == nil {
			return d.sendLink(ctx, appt, p, cd, now)
		}
		return outcomeSkipped
	}

	if !schedule.LeadWindowOpen(appt.ScheduledAt, p.LeadHours, now) {
		return outcomeSkipped
	}
	if !schedule.IsDue(appt.LastReminderSentAt, p.FrequencyMinutes, now) {
		return outcomeSkipped
	}

	req := notify.Request{
		Appointment: appt,
		Countdown:   cd,
		Policy:      p,
		Tone:        countdown.ToneFor(cd.TotalMinutes),
	}
	if appt.Remote() {
		req.MeetingLink = meetingLink(appt)
	}

	ev := d.send(ctx, EventReminder, req, now)
	if ev.Failed() {
		return outcomeFailed
	}
	if err := d.store.RecordReminderSent(ctx, appt.ID, now); err != nil {
		d.logger.Error("record reminder sent failed", "appointment_id", appt.ID, "err", err)
		u := d.unsaved[appt.ID]
		u.reminderAt = now
		d.unsaved[appt.ID] = u
	}
	return outcomeSent
}

func (d *Dispatcher) sendLink(ctx context.Context, appt model.Appointment, p policy.Policy, cd countdown.Countdown, now time.Time) outcome {
	req := notify.Request{
		Appointment: appt,
		Countdown:   cd,
		Policy:      p,
		Tone:        countdown.ToneFor(cd.TotalMinutes),
		LinkOnly:    true,
		MeetingLink: meetingLink(appt),
	}
	ev := d.send(ctx, EventLink, req, now)
	if ev.Failed() {
		return outcomeFailed
	}
	recorded, err := d.store.MarkLinkSent(ctx, appt.ID, now)
	if err != nil {
		d.logger.Error("record link sent failed", "appointment_id", appt.ID, "err", err)
		u := d.unsaved[appt.ID]
		u.linkAt = now
		d.unsaved[appt.ID] = u
	} else if !recorded {
		d.logger.Warn("meeting link already recorded as sent", "appointment_id", appt.ID)
	}
	return outcomeLinkSent
}

// reconcile retries bookkeeping writes that failed on an earlier tick and
// overlays the remembered timestamps on appt until the store has them.
func (d *Dispatcher) reconcile(ctx context.Context, appt *model.Appointment) {
	u, ok := d.unsaved[appt.ID]
	if !ok {
		return
	}
	if at := u.reminderAt; !at.IsZero() {
		if appt.LastReminderSentAt == nil || appt.LastReminderSentAt.Before(at) {
			appt.LastReminderSentAt = &at
		}
		if err := d.store.RecordReminderSent(ctx, appt.ID, at); err == nil {
			u.reminderAt = time.Time{}
		}
	}
	if at := u.linkAt; !at.IsZero() {
		if appt.OneTimeLinkSentAt == nil {
			appt.OneTimeLinkSentAt = &at
		}
		if _, err := d.store.MarkLinkSent(ctx, appt.ID, at); err == nil {
			u.linkAt = time.Time{}
		}
	}
	if u.empty() {
		delete(d.unsaved, appt.ID)
		return
	}
	d.unsaved[appt.ID] = u
}

// forgetUnsaved drops entries for appointments that are no longer scheduled.
func (d *Dispatcher) forgetUnsaved(seen map[string]struct{}) {
	for id := range d.unsaved {
		if _, ok := seen[id]; !ok {
			delete(d.unsaved, id)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, kind EventKind, req notify.Request, now time.Time) Event {
	ctx, span := d.tracer.Start(ctx, "reminder.send", trace.WithAttributes(
		attribute.String("appointment.id", req.Appointment.ID),
		attribute.String("reminder.kind", string(kind)),
		attribute.String("reminder.tone", string(req.Tone)),
		attribute.Int("reminder.minutes_remaining", req.Countdown.TotalMinutes),
	))
	defer span.End()

	rcpt, err := d.sender.Send(ctx, req)
	ev := Event{
		Kind:        kind,
		Appointment: req.Appointment,
		Countdown:   req.Countdown,
		Policy:      req.Policy,
		Tone:        req.Tone,
		MeetingLink: req.MeetingLink,
		Receipt:     rcpt,
		At:          now,
		Err:         err,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("reminder send failed",
			"appointment_id", req.Appointment.ID,
			"kind", string(kind),
			"err", err,
		)
	}
	d.observer.Observe(ctx, ev)
	return ev
}

func meetingLink(appt model.Appointment) string {
	if appt.MeetingLink != "" {
		return appt.MeetingLink
	}
	return notify.FallbackMeetingLink(appt.ID)
}
