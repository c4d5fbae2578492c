package config

import (
	"testing"
	"time"
)

func TestIntAndSeconds(t *testing.T) {
	t.Setenv("REMINDER_TICK_SECONDS", "")
	d, err := Seconds("REMINDER_TICK_SECONDS", time.Minute)
	if err != nil || d != time.Minute {
		t.Fatalf("expected fallback minute, got %v (%v)", d, err)
	}

	t.Setenv("REMINDER_TICK_SECONDS", "15")
	d, err = Seconds("REMINDER_TICK_SECONDS", time.Minute)
	if err != nil || d != 15*time.Second {
		t.Fatalf("expected 15s, got %v (%v)", d, err)
	}

	t.Setenv("REMINDER_TICK_SECONDS", "-3")
	if _, err := Seconds("REMINDER_TICK_SECONDS", time.Minute); err == nil {
		t.Fatal("expected error for negative seconds")
	}

	t.Setenv("REDIS_DB", "abc")
	if _, err := Int("REDIS_DB", 0); err == nil {
		t.Fatal("expected error for non-numeric int")
	}
}

func TestPortAndBool(t *testing.T) {
	t.Setenv("PORT", "99999")
	if _, err := Port("PORT", "8090"); err == nil {
		t.Fatal("expected invalid port error")
	}
	t.Setenv("OTEL_ENABLED", "off")
	if Bool("OTEL_ENABLED", true) {
		t.Fatal("expected off to parse as false")
	}
	t.Setenv("OTEL_ENABLED", "")
	if !Bool("OTEL_ENABLED", true) {
		t.Fatal("expected fallback true")
	}
}
