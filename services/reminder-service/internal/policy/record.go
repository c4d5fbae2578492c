package policy

import (
	"encoding/json"
	"fmt"
	"time"
)

const recordVersion = 2

// record is the stored shape. Version 1 records were written without "v" and
// used the portal's original camelCase keys.
type record struct {
	V                      int       `json:"v"`
	FrequencyMinutes       int       `json:"frequency_minutes"`
	LeadHours              int       `json:"lead_hours"`
	UrgentThresholdMinutes int       `json:"urgent_threshold_minutes"`
	Enabled                bool      `json:"enabled"`
	Silenced               bool      `json:"silenced,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type legacyRecord struct {
	Frequency       *int   `json:"frequency"`
	LeadTime        *int   `json:"leadTime"`
	UrgentThreshold *int   `json:"urgentThreshold"`
	Enabled         *bool  `json:"enabled"`
	UpdatedAt       string `json:"updatedAt"`
}

func encode(p Policy) ([]byte, error) {
	return json.Marshal(record{
		V:                      recordVersion,
		FrequencyMinutes:       p.FrequencyMinutes,
		LeadHours:              p.LeadHours,
		UrgentThresholdMinutes: p.UrgentThresholdMinutes,
		Enabled:                p.Enabled,
		Silenced:               p.Silenced,
		UpdatedAt:              p.UpdatedAt.UTC(),
	})
}

func decode(raw []byte) (Policy, error) {
	var header struct {
		V int `json:"v"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return Policy{}, err
	}

	switch header.V {
	case 0, 1:
		return migrateLegacy(raw)
	case recordVersion:
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return Policy{}, err
		}
		p := Policy{
			FrequencyMinutes:       r.FrequencyMinutes,
			LeadHours:              r.LeadHours,
			UrgentThresholdMinutes: r.UrgentThresholdMinutes,
			Enabled:                r.Enabled && !r.Silenced,
			Silenced:               r.Silenced,
			UpdatedAt:              r.UpdatedAt,
		}
		return fillDefaults(p), nil
	default:
		return Policy{}, fmt.Errorf("unsupported policy record version %d", header.V)
	}
}

// migrateLegacy fills every field the old shape left optional from Defaults.
func migrateLegacy(raw []byte) (Policy, error) {
	var l legacyRecord
	if err := json.Unmarshal(raw, &l); err != nil {
		return Policy{}, err
	}
	p := Defaults()
	if l.Frequency != nil {
		p.FrequencyMinutes = *l.Frequency
	}
	if l.LeadTime != nil {
		p.LeadHours = *l.LeadTime
	}
	if l.UrgentThreshold != nil {
		p.UrgentThresholdMinutes = *l.UrgentThreshold
	}
	if l.Enabled != nil {
		p.Enabled = *l.Enabled
	}
	if l.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, l.UpdatedAt); err == nil {
			p.UpdatedAt = ts
		}
	}
	return fillDefaults(p), nil
}

func fillDefaults(p Policy) Policy {
	d := Defaults()
	if p.FrequencyMinutes <= 0 {
		p.FrequencyMinutes = d.FrequencyMinutes
	}
	if p.LeadHours <= 0 {
		p.LeadHours = d.LeadHours
	}
	if p.UrgentThresholdMinutes <= 0 {
		p.UrgentThresholdMinutes = d.UrgentThresholdMinutes
	}
	return p
}
