package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/notify"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// printSender writes each reminder instead of delivering it.
type printSender struct {
	out   io.Writer
	start time.Time
	now   func() time.Time
}

func (s printSender) Send(_ context.Context, req notify.Request) (notify.Receipt, error) {
	elapsed := s.now().Sub(s.start)
	kind := "reminder"
	if req.LinkOnly {
		kind = "link"
	}
	fmt.Fprintf(s.out, "+%-8s %-8s tone=%-6s %s", elapsed.Truncate(time.Minute), kind, req.Tone, req.Countdown.Text)
	if req.MeetingLink != "" {
		fmt.Fprintf(s.out, " %s", req.MeetingLink)
	}
	fmt.Fprintln(s.out)
	return notify.Receipt{MessageID: uuid.NewString(), Provider: "stdout"}, nil
}

func newSimulateCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay the dispatcher against one in-memory appointment with a fake clock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, err := nowFrom(v)
			if err != nil {
				return err
			}
			at, err := parseInstant(v.GetString("at"), start)
			if err != nil {
				return err
			}
			step := v.GetDuration("step")
			if step <= 0 {
				return fmt.Errorf("--step must be positive")
			}

			clock := start
			now := func() time.Time { return clock }

			kind := model.KindInPerson
			if v.GetBool("remote") {
				kind = model.KindRemote
			}
			appt := model.Appointment{
				ID:              uuid.NewString(),
				PatientName:     "Simulated Patient",
				ScheduledAt:     at,
				Status:          model.StatusScheduled,
				Kind:            kind,
				ReminderEnabled: !v.GetBool("disabled"),
			}
			appts := storage.NewMemoryAppointments(appt)
			policies := policy.NewStore(policy.NewMemoryBackend(), nil).WithClock(now)

			ctx := cmd.Context()
			if _, err := policies.Set(ctx, appt.ID, policy.Policy{
				FrequencyMinutes:       v.GetInt("frequency"),
				LeadHours:              v.GetInt("lead"),
				UrgentThresholdMinutes: v.GetInt("urgent"),
				Enabled:                !v.GetBool("disabled"),
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			d := dispatcher.New(appts, policies, printSender{out: out, start: start, now: now}, logger, dispatcher.Config{Now: now})

			var total dispatcher.Report
			for ; !clock.After(at); clock = clock.Add(step) {
				report, err := d.Tick(ctx)
				if err != nil {
					return err
				}
				total.Sent += report.Sent
				total.LinkSent += report.LinkSent
			}
			fmt.Fprintf(out, "sent %d reminders, %d link messages\n", total.Sent, total.LinkSent)
			return nil
		},
	}
	cmd.Flags().String("at", "3h", "appointment time (RFC3339 or offset such as 2h)")
	cmd.Flags().Duration("step", time.Minute, "simulated time between ticks")
	cmd.Flags().Int("frequency", policy.DefaultFrequencyMinutes, "minutes between reminders")
	cmd.Flags().Int("lead", policy.DefaultLeadHours, "hours before the appointment reminders start")
	cmd.Flags().Int("urgent", policy.DefaultUrgentThresholdMinutes, "urgent threshold in minutes")
	cmd.Flags().Bool("remote", false, "simulate a remote appointment")
	cmd.Flags().Bool("disabled", false, "simulate a patient who turned reminders off")
	return cmd
}
