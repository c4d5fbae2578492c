package main

import (
	"log/slog"
	"strings"

	"github.com/carepulse/portal/libs/config"
	"github.com/carepulse/portal/services/reminder-service/internal/email"
	"github.com/carepulse/portal/services/reminder-service/internal/notify"
	"github.com/carepulse/portal/services/reminder-service/internal/sms"
)

func newSender(logger *slog.Logger) notify.Sender {
	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@carepulse.local")
	baseURL := config.String("PORTAL_BASE_URL", "http://localhost:3000")
	emailSender := notify.NewEmailSender(email.NewSMTPSender(smtpHost, smtpPort, smtpFrom), baseURL)

	var smsSender sms.Sender
	switch provider := strings.ToLower(config.String("SMS_PROVIDER", "noop")); provider {
	case "webhook":
		smsSender = sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", ""))
	case "noop":
		smsSender = sms.NewNoopSender()
	default:
		logger.Warn("unknown SMS_PROVIDER, using noop", "provider", provider)
		smsSender = sms.NewNoopSender()
	}

	logger.Info("notification channels configured", "smtp_host", smtpHost, "sms_provider", smsSender.ProviderID())
	return notify.Router{
		Email: emailSender,
		SMS:   notify.NewSMSSender(smsSender),
	}
}
