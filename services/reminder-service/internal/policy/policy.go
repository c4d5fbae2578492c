// Package policy holds the per-appointment reminder configuration and the
// store it is persisted in.
package policy

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	FrequencyPresets = []int{1, 5, 15, 30, 60}
	LeadHourPresets  = []int{1, 6, 12, 24}
)

const (
	DefaultFrequencyMinutes       = 30
	DefaultLeadHours              = 24
	DefaultUrgentThresholdMinutes = 60
)

var ErrInvalidPolicy = errors.New("invalid reminder policy")

type Policy struct {
	FrequencyMinutes       int
	LeadHours              int
	UrgentThresholdMinutes int
	Enabled                bool
	// Silenced is set once the appointment reached a terminal status. A
	// silenced policy stays disabled whatever is written afterwards.
	Silenced  bool
	UpdatedAt time.Time
}

func Defaults() Policy {
	return Policy{
		FrequencyMinutes:       DefaultFrequencyMinutes,
		LeadHours:              DefaultLeadHours,
		UrgentThresholdMinutes: DefaultUrgentThresholdMinutes,
		Enabled:                true,
	}
}

func (p Policy) Frequency() time.Duration {
	return time.Duration(p.FrequencyMinutes) * time.Minute
}

func (p Policy) Lead() time.Duration {
	return time.Duration(p.LeadHours) * time.Hour
}

func (p Policy) Validate() error {
	if !slices.Contains(FrequencyPresets, p.FrequencyMinutes) {
		return fmt.Errorf("%w: frequency_minutes must be one of %v", ErrInvalidPolicy, FrequencyPresets)
	}
	if !slices.Contains(LeadHourPresets, p.LeadHours) {
		return fmt.Errorf("%w: lead_hours must be one of %v", ErrInvalidPolicy, LeadHourPresets)
	}
	if p.UrgentThresholdMinutes <= 0 {
		return fmt.Errorf("%w: urgent_threshold_minutes must be positive", ErrInvalidPolicy)
	}
	return nil
}
