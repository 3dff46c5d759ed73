package domain

import "time"

// HistoryEntry is the immutable per-tick record. A baseline entry is written
// for every processed vehicle on every tick; entries caused by a firing
// trigger additionally carry the trigger id and type. Retention is an
// external concern.
type HistoryEntry struct {
	ID          string          `json:"id"`
	VehicleID   string          `json:"vehicle_id"`
	FleetID     string          `json:"fleet_id"`
	TriggerID   string          `json:"trigger_id,omitempty"`
	TriggerType TriggerType     `json:"trigger_type,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Sample      TelemetrySample `json:"sample"`
}

// FromTrigger reports whether the entry was caused by a trigger firing, as
// opposed to baseline cadence.
func (e *HistoryEntry) FromTrigger() bool {
	return e.TriggerID != ""
}
