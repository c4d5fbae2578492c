package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/carepulse/portal/libs/kafkax"
	"github.com/carepulse/portal/services/reminder-service/internal/countdown"
	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/carepulse/portal/services/reminder-service/internal/model"
	"github.com/carepulse/portal/services/reminder-service/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() dispatcher.Event {
	return dispatcher.Event{
		Kind:        dispatcher.EventReminder,
		Appointment: model.Appointment{ID: "appt-1", PatientID: "pat-9"},
		Countdown:   countdown.Countdown{TotalMinutes: 45, Text: "45 minutes"},
		Tone:        countdown.ToneUrgent,
		Receipt:     notify.Receipt{MessageID: "m-1", Provider: "smtp"},
		At:          time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestFromDispatchEventTypes(t *testing.T) {
	ev := sampleEvent()
	evt, err := FromDispatch(ev)
	require.NoError(t, err)
	assert.Equal(t, EventReminderSent, evt.EventType)
	assert.Equal(t, AggregateAppointment, evt.AggregateType)
	assert.Equal(t, "appt-1", evt.AggregateID)

	var payload ReminderPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, 45, payload.MinutesRemaining)
	assert.Equal(t, "urgent", payload.Tone)
	assert.Equal(t, "m-1", payload.MessageID)
	assert.Empty(t, payload.Error)

	ev.Kind = dispatcher.EventLink
	ev.MeetingLink = "https://meet.google.com/appt1"
	evt, err = FromDispatch(ev)
	require.NoError(t, err)
	assert.Equal(t, EventReminderLinkSent, evt.EventType)
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "https://meet.google.com/appt1", payload.MeetingLink)

	ev.Err = errors.New("smtp down")
	evt, err = FromDispatch(ev)
	require.NoError(t, err)
	assert.Equal(t, EventReminderFailed, evt.EventType)
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "smtp down", payload.Error)
}

type fakeAppender struct {
	events []Event
	err    error
}

func (f *fakeAppender) Append(_ context.Context, evt Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func TestObserverAppendsAndSwallowsErrors(t *testing.T) {
	out := &fakeAppender{}
	obs := NewObserver(out, nil)

	obs.Observe(context.Background(), sampleEvent())
	require.Len(t, out.events, 1)
	assert.Equal(t, EventReminderSent, out.events[0].EventType)

	out.err = errors.New("db down")
	assert.NotPanics(t, func() { obs.Observe(context.Background(), sampleEvent()) })
}

func TestToMessageCarriesEventMeta(t *testing.T) {
	msg := toMessage(context.Background(), Record{
		ID:          7,
		EventID:     "4f1c9a52-0d4e-4c55-9d43-1c2b0f4d7a10",
		AggregateID: "appt-1",
		EventType:   EventReminderSent,
		Payload:     []byte(`{}`),
	})

	assert.Equal(t, EventReminderSent, msg.Topic)
	assert.Equal(t, []byte("appt-1"), msg.Key)
	meta := kafkax.ExtractEventMeta(msg)
	assert.Equal(t, "4f1c9a52-0d4e-4c55-9d43-1c2b0f4d7a10", meta.EventID)
	assert.Equal(t, EventReminderSent, meta.EventType)
}
