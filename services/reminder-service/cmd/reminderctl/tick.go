package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/carepulse/portal/libs/db"
	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/carepulse/portal/services/reminder-service/internal/email"
	"github.com/carepulse/portal/services/reminder-service/internal/notify"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/sms"
	"github.com/carepulse/portal/services/reminder-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTickCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one dispatcher pass against the configured database",
		Long: `Runs a single reminder tick against DATABASE_URL and REDIS_ADDR and
prints the report. Reminders are really sent through SMTP. A running
service loop is not aware of this tick; bookkeeping columns keep the two
from sending twice inside one frequency window.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

			dbURL := v.GetString("database-url")
			if dbURL == "" {
				return fmt.Errorf("--database-url (or DATABASE_URL) is required")
			}
			// Policies live only in Redis; an empty memory store would make
			// every appointment fall back to its booking-time opt-in and lose
			// every later edit.
			redisAddr := v.GetString("redis-addr")
			if redisAddr == "" {
				return fmt.Errorf("--redis-addr (or REDIS_ADDR) is required: tick sends real reminders and needs the stored policies")
			}
			pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: 2, AppName: "reminderctl"})
			if err != nil {
				return err
			}
			defer pool.Close()

			rdb := redis.NewClient(&redis.Options{
				Addr:     redisAddr,
				Password: v.GetString("redis-password"),
				DB:       v.GetInt("redis-db"),
			})
			defer func() { _ = rdb.Close() }()
			backend := policy.NewRedisBackend(rdb, v.GetString("policy-key-prefix"))

			sender := notify.Router{
				Email: notify.NewEmailSender(
					email.NewSMTPSender(v.GetString("smtp-host"), v.GetString("smtp-port"), v.GetString("smtp-from")),
					v.GetString("portal-base-url"),
				),
				SMS: notify.NewSMSSender(sms.NewNoopSender()),
			}
			d := dispatcher.New(storage.NewAppointmentRepository(pool), policy.NewStore(backend, logger), sender, logger, dispatcher.Config{
				Observer: dispatcher.NewLogObserver(logger),
			})

			report, err := d.Tick(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().String("database-url", "", "postgres connection string")
	cmd.Flags().String("redis-addr", "", "redis address holding reminder policies")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().Int("redis-db", 0, "redis database")
	cmd.Flags().String("policy-key-prefix", policy.DefaultRedisPrefix, "redis key prefix for policies")
	cmd.Flags().String("smtp-host", "mailpit", "SMTP host")
	cmd.Flags().String("smtp-port", "1025", "SMTP port")
	cmd.Flags().String("smtp-from", "no-reply@carepulse.local", "sender address")
	cmd.Flags().String("portal-base-url", "http://localhost:3000", "patient portal base URL used in links")
	return cmd
}
