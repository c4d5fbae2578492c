// Package countdown turns the distance to an appointment into the figures and
// text shown in reminders.
package countdown

import (
	"fmt"
	"time"
)

const PassedText = "appointment already passed"

type Countdown struct {
	Passed       bool
	TotalMinutes int
	Text         string
}

// Remaining is pure: hours and minutes are floored, never rounded up.
func Remaining(now, target time.Time) Countdown {
	if !target.After(now) {
		return Countdown{Passed: true, Text: PassedText}
	}

	total := int(target.Sub(now) / time.Minute)
	hours := total / 60
	minutes := total % 60

	var text string
	switch {
	case hours > 24:
		days := hours / 24
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		text = fmt.Sprintf("%d %s and %dh", days, unit, hours%24)
	case hours > 0:
		text = fmt.Sprintf("%dh %dmin", hours, minutes)
	default:
		text = fmt.Sprintf("%d minutes", minutes)
	}

	return Countdown{TotalMinutes: total, Text: text}
}

type Tone string

const (
	ToneUrgent Tone = "urgent"
	ToneSoon   Tone = "soon"
	ToneNormal Tone = "normal"
)

// ToneFor maps remaining minutes onto the three message tiers the reminder
// templates are written for.
func ToneFor(totalMinutes int) Tone {
	switch {
	case totalMinutes <= 60:
		return ToneUrgent
	case totalMinutes <= 180:
		return ToneSoon
	default:
		return ToneNormal
	}
}
