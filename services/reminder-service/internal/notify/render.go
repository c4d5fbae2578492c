package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
)

type Rendered struct {
	Subject string
	Text    string
	HTML    string
	SMS     string
}

var htmlTmpl = template.Must(template.New("reminder").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<p>Hello {{.Name}},</p>
{{if .LinkOnly}}<p>Your video visit{{with .Provider}} with {{.}}{{end}} is on {{.When}}.</p>
<p><a href="{{.Link}}">Join the visit</a></p>
{{else}}<p{{if eq .Tone "urgent"}} style="color:#b00020;font-weight:bold"{{end}}>{{.Lead}}</p>
<p>Your appointment{{with .Provider}} with {{.}}{{end}} is on {{.When}} ({{.Remaining}} from now).</p>
{{with .Link}}<p><a href="{{.}}">Join the visit</a></p>{{end}}{{end}}
{{with .ManageURL}}<p><a href="{{.}}">Manage reminders</a></p>{{end}}
</body></html>`))

type view struct {
	Name      string
	Provider  string
	When      string
	Remaining string
	Lead      string
	Tone      string
	Link      string
	LinkOnly  bool
	ManageURL string
}

// Render builds every channel's copy for req. baseURL, when set, is used for
// the reminder-management link.
func Render(req Request, baseURL string) (Rendered, error) {
	appt := req.Appointment
	v := view{
		Name:      firstNonEmpty(appt.PatientName, "there"),
		Provider:  appt.ProviderName,
		When:      appt.ScheduledAt.UTC().Format("Mon, 02 Jan 2006 15:04 MST"),
		Remaining: req.Countdown.Text,
		Tone:      string(req.Tone),
		Link:      req.MeetingLink,
		LinkOnly:  req.LinkOnly,
	}
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		v.ManageURL = base + "/appointments/" + appt.ID + "/reminders"
	}

	var subject string
	switch {
	case req.LinkOnly:
		subject = "Your video visit link"
		v.Lead = "Here is the link for your video visit."
	case req.Tone == countdown.ToneUrgent:
		subject = fmt.Sprintf("Starting soon: your appointment in %s", req.Countdown.Text)
		v.Lead = "Your appointment is about to start. Please get ready now."
	case req.Tone == countdown.ToneSoon:
		subject = fmt.Sprintf("Reminder: your appointment is in %s", req.Countdown.Text)
		v.Lead = "Your appointment is coming up later today."
	default:
		subject = fmt.Sprintf("Upcoming appointment in %s", req.Countdown.Text)
		v.Lead = "This is a reminder about your upcoming appointment."
	}

	var html bytes.Buffer
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return Rendered{}, err
	}

	text := renderText(v)
	return Rendered{
		Subject: subject,
		Text:    text,
		HTML:    html.String(),
		SMS:     renderSMS(v),
	}, nil
}

func renderText(v view) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", v.Name)
	if v.LinkOnly {
		fmt.Fprintf(&b, "Your video visit%s is on %s.\nJoin here: %s\n", withProvider(v.Provider), v.When, v.Link)
	} else {
		fmt.Fprintf(&b, "%s\nYour appointment%s is on %s (%s from now).\n", v.Lead, withProvider(v.Provider), v.When, v.Remaining)
		if v.Link != "" {
			fmt.Fprintf(&b, "Join here: %s\n", v.Link)
		}
	}
	if v.ManageURL != "" {
		fmt.Fprintf(&b, "\nManage reminders: %s\n", v.ManageURL)
	}
	return b.String()
}

func renderSMS(v view) string {
	if v.LinkOnly {
		return fmt.Sprintf("Video visit %s: %s", v.When, v.Link)
	}
	msg := fmt.Sprintf("Appointment%s in %s (%s).", withProvider(v.Provider), v.Remaining, v.When)
	if v.Tone == string(countdown.ToneUrgent) {
		msg = "URGENT: " + msg
	}
	if v.Link != "" {
		msg += " " + v.Link
	}
	return msg
}

func withProvider(name string) string {
	if name == "" {
		return ""
	}
	return " with " + name
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// FallbackMeetingLink is used for remote appointments that were booked
// without a link. The code is derived from the appointment id so every
// message for one appointment carries the same room.
func FallbackMeetingLink(appointmentID string) string {
	code := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(appointmentID), "-", ""))
	if len(code) > 10 {
		code = code[:10]
	}
	return "https://meet.google.com/" + code
}
