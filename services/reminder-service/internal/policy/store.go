package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend is the persistent key-value store policies live in.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
}

type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger, now: time.Now}
}

// WithClock replaces the clock used to stamp UpdatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get never fails for a missing or unreadable record: both yield Defaults.
// Only backend errors are returned.
func (s *Store) Get(ctx context.Context, appointmentID string) (Policy, error) {
	return s.Resolve(ctx, appointmentID, true)
}

// Resolve is Get for an appointment whose opt-in is known. When no readable
// record exists the defaults carry Enabled=optedIn, so a lost or corrupt
// record never turns reminders on for a patient who declined them.
func (s *Store) Resolve(ctx context.Context, appointmentID string, optedIn bool) (Policy, error) {
	fallback := Defaults()
	fallback.Enabled = optedIn

	raw, ok, err := s.backend.Load(ctx, appointmentID)
	if err != nil {
		return Policy{}, fmt.Errorf("load reminder policy %s: %w", appointmentID, err)
	}
	if !ok {
		return fallback, nil
	}
	p, err := decode(raw)
	if err != nil {
		s.logger.Warn("unreadable reminder policy, using defaults",
			"appointment_id", appointmentID, "enabled", optedIn, "err", err)
		return fallback, nil
	}
	return p, nil
}

// Set validates and writes p, last write wins. A silenced record keeps its
// Silenced flag and stays disabled.
func (s *Store) Set(ctx context.Context, appointmentID string, p Policy) (Policy, error) {
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	current, err := s.Get(ctx, appointmentID)
	if err != nil {
		return Policy{}, err
	}
	if current.Silenced {
		p.Silenced = true
		p.Enabled = false
	}
	return s.write(ctx, appointmentID, p)
}

// Silence permanently disables reminders for the appointment.
func (s *Store) Silence(ctx context.Context, appointmentID string) (Policy, error) {
	p, err := s.Get(ctx, appointmentID)
	if err != nil {
		return Policy{}, err
	}
	p.Enabled = false
	p.Silenced = true
	return s.write(ctx, appointmentID, p)
}

// Seed writes a default policy for a newly created appointment unless one
// already exists, so replayed creation events do not reset user edits.
func (s *Store) Seed(ctx context.Context, appointmentID string, enabled bool) (Policy, bool, error) {
	_, ok, err := s.backend.Load(ctx, appointmentID)
	if err != nil {
		return Policy{}, false, fmt.Errorf("load reminder policy %s: %w", appointmentID, err)
	}
	if ok {
		p, err := s.Get(ctx, appointmentID)
		return p, false, err
	}
	p := Defaults()
	p.Enabled = enabled
	p, err = s.write(ctx, appointmentID, p)
	return p, err == nil, err
}

func (s *Store) write(ctx context.Context, appointmentID string, p Policy) (Policy, error) {
	p.UpdatedAt = s.now().UTC()
	raw, err := encode(p)
	if err != nil {
		return Policy{}, err
	}
	if err := s.backend.Save(ctx, appointmentID, raw); err != nil {
		return Policy{}, fmt.Errorf("save reminder policy %s: %w", appointmentID, err)
	}
	return p, nil
}
