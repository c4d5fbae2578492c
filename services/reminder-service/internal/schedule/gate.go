package schedule

import "time"

// IsDue reports whether a reminder may be sent at now. A nil or zero
// lastSentAt is "never sent"; a lastSentAt in the future can only come from
// clock skew or a corrupt record and is treated the same way.
func IsDue(lastSentAt *time.Time, frequencyMinutes int, now time.Time) bool {
	if lastSentAt == nil || lastSentAt.IsZero() || lastSentAt.After(now) {
		return true
	}
	elapsed := int(now.Sub(*lastSentAt) / time.Minute)
	return elapsed >= frequencyMinutes
}

// LeadWindowOpen is inclusive at the exact opening instant.
func LeadWindowOpen(scheduledAt time.Time, leadHours int, now time.Time) bool {
	return !now.Before(LeadWindowStart(scheduledAt, leadHours))
}
