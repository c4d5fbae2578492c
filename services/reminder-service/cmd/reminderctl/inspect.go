package main

import (
	"fmt"
	"time"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/schedule"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCountdownCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Print the countdown text and tone for an appointment time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := nowFrom(v)
			if err != nil {
				return err
			}
			at, err := parseInstant(v.GetString("at"), now)
			if err != nil {
				return err
			}
			cd := countdown.Remaining(now, at)
			if cd.Passed {
				fmt.Fprintln(cmd.OutOrStdout(), cd.Text)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d minutes, tone %s)\n", cd.Text, cd.TotalMinutes, countdown.ToneFor(cd.TotalMinutes))
			return nil
		},
	}
	cmd.Flags().String("at", "", "appointment time (RFC3339 or offset such as 2h)")
	return cmd
}

func newPlanCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Project the reminders a policy would send",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := nowFrom(v)
			if err != nil {
				return err
			}
			at, err := parseInstant(v.GetString("at"), now)
			if err != nil {
				return err
			}
			p := policy.Policy{
				FrequencyMinutes:       v.GetInt("frequency"),
				LeadHours:              v.GetInt("lead"),
				UrgentThresholdMinutes: v.GetInt("urgent"),
				Enabled:                true,
			}
			if err := p.Validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			planned := schedule.Plan(model.Appointment{ScheduledAt: at, Status: model.StatusScheduled}, p, now)
			if len(planned) == 0 {
				fmt.Fprintln(out, "no reminders: "+countdown.PassedText)
				return nil
			}
			for _, pr := range planned {
				label := "send"
				switch {
				case pr.Deferred:
					label = "window opens"
				case pr.Urgent:
					label = "send (urgent)"
				}
				fmt.Fprintf(out, "%s  %-14s %d minutes before\n", pr.SendAt.UTC().Format(time.RFC3339), label, pr.MinutesRemaining)
			}
			return nil
		},
	}
	cmd.Flags().String("at", "", "appointment time (RFC3339 or offset such as 2h)")
	cmd.Flags().Int("frequency", policy.DefaultFrequencyMinutes, "minutes between reminders")
	cmd.Flags().Int("lead", policy.DefaultLeadHours, "hours before the appointment reminders start")
	cmd.Flags().Int("urgent", policy.DefaultUrgentThresholdMinutes, "minutes remaining below which reminders are urgent")
	return cmd
}
