package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCountdownCommand(t *testing.T) {
	out := run(t, "countdown", "--now", "2026-03-10T09:00:00Z", "--at", "2026-03-10T11:00:00Z")
	assert.Equal(t, "2h 0min (120 minutes, tone soon)\n", out)

	out = run(t, "countdown", "--now", "2026-03-10T09:00:00Z", "--at=-1m")
	assert.Equal(t, "appointment already passed\n", out)
}

func TestPlanCommandDefersUntilLeadWindow(t *testing.T) {
	out := run(t, "plan", "--now", "2026-03-10T09:00:00Z", "--at", "25h")
	assert.Equal(t, "2026-03-10T10:00:00Z  window opens   1440 minutes before\n", out)
}

func TestPlanCommandRejectsUnknownPreset(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"plan", "--at", "2h", "--frequency", "7"})
	assert.Error(t, cmd.Execute())
}

func TestSimulateDisabledRemoteSendsOneLink(t *testing.T) {
	out := run(t, "simulate", "--now", "2026-03-10T09:00:00Z", "--at", "2h", "--remote", "--disabled", "--step", "5m")
	assert.Equal(t, 1, strings.Count(out, "tone="))
	assert.Contains(t, out, "https://meet.google.com/")
	assert.Contains(t, out, "sent 0 reminders, 1 link messages")
}

func TestSimulateRespectsFrequency(t *testing.T) {
	out := run(t, "simulate", "--now", "2026-03-10T09:00:00Z", "--at", "2h", "--frequency", "30", "--step", "1m")
	assert.Contains(t, out, "sent 4 reminders, 0 link messages")
}

func TestParseInstant(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	got, err := parseInstant("90m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(90*time.Minute), got)

	got, err = parseInstant("2026-03-11T09:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(24*time.Hour), got)

	_, err = parseInstant("tomorrow", now)
	assert.Error(t, err)
}

func TestTickRequiresPolicyStore(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tick", "--database-url", "postgres://portal@127.0.0.1:1/portal"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--redis-addr")
}
