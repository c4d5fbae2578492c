package email

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible relay).
type SMTPSender struct {
	host    string
	addr    string
	from    string
	timeout time.Duration
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@carepulse.local"
	}
	return &SMTPSender{
		host:    host,
		addr:    net.JoinHostPort(host, port),
		from:    from,
		timeout: 10 * time.Second,
	}
}

// Send delivers msg and returns the Message-ID it was sent with.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", errors.New("email recipient missing")
	}
	if strings.ContainsAny(msg.To, "\r\n") {
		return "", ErrInvalidRecipient
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(s.from))
	raw := buildMessage(s.from, messageID, msg, time.Now())

	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(s.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return "", err
	}
	defer c.Close()

	if err := c.Mail(s.from); err != nil {
		return "", err
	}
	if err := c.Rcpt(msg.To); err != nil {
		return "", err
	}
	w, err := c.Data()
	if err != nil {
		return "", err
	}
	if _, err := w.Write([]byte(raw)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return messageID, c.Quit()
}

var ErrInvalidRecipient = errors.New("email recipient contains a line break")

const boundary = "carepulse-reminder-alt"

// headerText folds line breaks away and RFC 2047-encodes non-ASCII text.
func headerText(v string) string {
	v = strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(v)), " ")
	return mime.QEncoding.Encode("utf-8", v)
}

func buildMessage(from, messageID string, msg Message, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerText(msg.Subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTML == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Text)
		b.WriteString("\r\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return strings.Trim(addr[i+1:], "> ")
	}
	return "localhost"
}
