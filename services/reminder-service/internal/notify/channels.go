package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carepulse/portal/services/reminder-service/internal/email"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/sms"
)

var ErrNoRecipient = errors.New("appointment has no reachable contact")

type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

type EmailSender struct {
	mailer  Mailer
	baseURL string
}

func NewEmailSender(mailer Mailer, baseURL string) *EmailSender {
	return &EmailSender{mailer: mailer, baseURL: baseURL}
}

func (s *EmailSender) Send(ctx context.Context, req Request) (Receipt, error) {
	to := strings.TrimSpace(req.Appointment.PatientEmail)
	if to == "" {
		return Receipt{}, ErrNoRecipient
	}
	r, err := Render(req, s.baseURL)
	if err != nil {
		return Receipt{}, fmt.Errorf("render reminder: %w", err)
	}
	id, err := s.mailer.Send(ctx, email.Message{To: to, Subject: r.Subject, Text: r.Text, HTML: r.HTML})
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{MessageID: id, Provider: "smtp"}, nil
}

type SMSSender struct {
	sender sms.Sender
}

func NewSMSSender(sender sms.Sender) *SMSSender {
	return &SMSSender{sender: sender}
}

func (s *SMSSender) Send(ctx context.Context, req Request) (Receipt, error) {
	to := strings.TrimSpace(req.Appointment.PatientPhone)
	if to == "" {
		return Receipt{}, ErrNoRecipient
	}
	r, err := Render(req, "")
	if err != nil {
		return Receipt{}, fmt.Errorf("render reminder: %w", err)
	}
	id, err := s.sender.Send(ctx, to, r.SMS)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{MessageID: id, Provider: s.sender.ProviderID()}, nil
}

// Router sends through the patient's preferred channel. SMS requests for a
// patient without a phone number, and every link-only message, go by email.
type Router struct {
	Email Sender
	SMS   Sender
}

func (r Router) Send(ctx context.Context, req Request) (Receipt, error) {
	useSMS := req.Appointment.ContactChannel == model.ChannelSMS &&
		strings.TrimSpace(req.Appointment.PatientPhone) != "" &&
		!req.LinkOnly &&
		r.SMS != nil
	if useSMS {
		return r.SMS.Send(ctx, req)
	}
	if r.Email == nil {
		return Receipt{}, errors.New("email channel not configured")
	}
	return r.Email.Send(ctx, req)
}
