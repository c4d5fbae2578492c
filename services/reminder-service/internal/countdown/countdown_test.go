package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		target time.Time
		want   Countdown
	}{
		{"same instant", now, Countdown{Passed: true, Text: PassedText}},
		{"past", now.Add(-time.Hour), Countdown{Passed: true, Text: PassedText}},
		{"seconds only", now.Add(59 * time.Second), Countdown{TotalMinutes: 0, Text: "0 minutes"}},
		{"minutes", now.Add(42*time.Minute + 30*time.Second), Countdown{TotalMinutes: 42, Text: "42 minutes"}},
		{"hours", now.Add(2 * time.Hour), Countdown{TotalMinutes: 120, Text: "2h 0min"}},
		{"exactly a day stays in hours", now.Add(24*time.Hour + 5*time.Minute), Countdown{TotalMinutes: 1445, Text: "24h 5min"}},
		{"one day", now.Add(25*time.Hour + 59*time.Minute), Countdown{TotalMinutes: 1559, Text: "1 day and 1h"}},
		{"several days", now.Add(73 * time.Hour), Countdown{TotalMinutes: 4380, Text: "3 days and 1h"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Remaining(now, tc.target))
		})
	}
}

func TestRemainingIsDeterministic(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	target := now.Add(3*time.Hour + 7*time.Minute)
	assert.Equal(t, Remaining(now, target), Remaining(now, target))
	assert.True(t, Remaining(now, now).Passed)
}

func TestToneFor(t *testing.T) {
	assert.Equal(t, ToneUrgent, ToneFor(0))
	assert.Equal(t, ToneUrgent, ToneFor(60))
	assert.Equal(t, ToneSoon, ToneFor(61))
	assert.Equal(t, ToneSoon, ToneFor(120))
	assert.Equal(t, ToneSoon, ToneFor(180))
	assert.Equal(t, ToneNormal, ToneFor(181))
}
