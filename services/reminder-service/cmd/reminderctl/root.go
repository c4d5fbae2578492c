package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "reminderctl",
		Short:         "Inspect and drive appointment reminders",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}
	root.PersistentFlags().String("now", "", "evaluate at this RFC3339 instant instead of the wall clock")

	root.AddCommand(
		newCountdownCommand(v),
		newPlanCommand(v),
		newSimulateCommand(v),
		newTickCommand(v),
	)
	return root
}

// parseInstant accepts RFC3339 or a duration relative to now ("2h", "-15m").
func parseInstant(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing time")
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return now.Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", raw)
	}
	return t, nil
}

func nowFrom(v *viper.Viper) (time.Time, error) {
	raw := v.GetString("now")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now: %w", err)
	}
	return t, nil
}
