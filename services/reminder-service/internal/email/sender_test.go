package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildMessagePlain(t *testing.T) {
	raw := buildMessage("no-reply@carepulse.local", "<m1@carepulse.local>", Message{
		To:      "pat@example.com",
		Subject: "Appointment reminder",
		Text:    "See you soon.",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	for _, want := range []string{
		"From: no-reply@carepulse.local\r\n",
		"To: pat@example.com\r\n",
		"Message-ID: <m1@carepulse.local>\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n\r\nSee you soon.\r\n",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q:\n%s", want, raw)
		}
	}
	if strings.Contains(raw, "multipart") {
		t.Fatal("plain message must not be multipart")
	}
}

func TestBuildMessageAlternative(t *testing.T) {
	raw := buildMessage("no-reply@carepulse.local", "<m2@carepulse.local>", Message{
		To:      "pat@example.com",
		Subject: "Appointment reminder",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}, time.Now())

	if !strings.Contains(raw, `multipart/alternative; boundary="carepulse-reminder-alt"`) {
		t.Fatalf("expected multipart header:\n%s", raw)
	}
	if strings.Index(raw, "plain body") > strings.Index(raw, "<p>html body</p>") {
		t.Fatal("text part must precede html part")
	}
	if !strings.HasSuffix(raw, "--carepulse-reminder-alt--\r\n") {
		t.Fatal("missing closing boundary")
	}
}

func TestDomainOf(t *testing.T) {
	if got := domainOf("Care Pulse <no-reply@carepulse.health>"); got != "carepulse.health" {
		t.Fatalf("got %q", got)
	}
	if got := domainOf("nobody"); got != "localhost" {
		t.Fatalf("got %q", got)
	}
}

func TestSubjectCannotInjectHeaders(t *testing.T) {
	raw := buildMessage("no-reply@carepulse.local", "<m3@carepulse.local>", Message{
		To:      "pat@example.com",
		Subject: "Reminder for Ana\r\nBcc: everyone@example.com",
		Text:    "body",
	}, time.Now())

	if strings.Contains(raw, "\r\nBcc:") {
		t.Fatalf("subject line break leaked into headers:\n%s", raw)
	}
	if !strings.Contains(raw, "Subject: Reminder for Ana Bcc: everyone@example.com\r\n") {
		t.Fatalf("unexpected subject:\n%s", raw)
	}
}

func TestSendRejectsRecipientWithLineBreak(t *testing.T) {
	s := NewSMTPSender("127.0.0.1", "1", "no-reply@carepulse.local")
	_, err := s.Send(context.Background(), Message{To: "pat@example.com\r\nBcc: x@example.com", Subject: "s", Text: "b"})
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}
