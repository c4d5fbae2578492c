package model

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transition (and no reminder) is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s Status) Valid() bool {
	return s == StatusScheduled || s.Terminal()
}

type Kind string

const (
	KindInPerson Kind = "in_person"
	KindRemote   Kind = "remote"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Appointment struct {
	ID                 string
	PatientID          string
	PatientName        string
	PatientEmail       string
	PatientPhone       string
	ProviderName       string
	ScheduledAt        time.Time
	Status             Status
	Kind               Kind
	MeetingLink        string
	ContactChannel     Channel
	ReminderEnabled    bool
	LastReminderSentAt *time.Time
	OneTimeLinkSentAt  *time.Time
	ConfirmedAt        *time.Time
	CreatedAt          time.Time
}

func (a Appointment) Remote() bool {
	return a.Kind == KindRemote
}
