package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type TriggerType string

const (
	TriggerTimeBased        TriggerType = "time_based"
	TriggerLocationBased    TriggerType = "location_based"
	TriggerSpeedBased       TriggerType = "speed_based"
	TriggerEventBased       TriggerType = "event_based"
	TriggerConditionBased   TriggerType = "condition_based"
	TriggerRouteDeviation   TriggerType = "route_deviation"
	TriggerPerformanceBased TriggerType = "performance_based"
	TriggerIntegrationBased TriggerType = "integration_based"
)

// Trigger belongs to exactly one vehicle. LastTriggered is mutated only by
// the evaluation engine; activation state is managed externally.
type Trigger struct {
	ID            string
	VehicleID     string
	Name          string
	Type          TriggerType
	Conditions    TriggerConditions // nil when the stored payload had an unknown type
	IsActive      bool
	LastTriggered *time.Time
}

// TriggerConditions is the typed payload attached to a trigger. Each trigger
// type carries its own variant; the evaluator dispatches with a type switch,
// so an unknown variant can only ever evaluate to "does not fire".
type TriggerConditions interface {
	conditionType() TriggerType
}

type TimeWindow struct {
	Start                 string `json:"start"` // "HH:MM", local time
	End                   string `json:"end"`   // "HH:MM"
	UpdateIntervalMinutes int    `json:"update_interval_minutes"`
}

type TimeConditions struct {
	Windows []TimeWindow `json:"windows"`
}

func (*TimeConditions) conditionType() TriggerType { return TriggerTimeBased }

type Geofence struct {
	Center  Location `json:"center"`
	RadiusM float64  `json:"radius_m"`
}

type LocationConditions struct {
	Geofence           *Geofence `json:"geofence,omitempty"`
	DistanceThresholdM float64   `json:"distance_threshold_m,omitempty"`
}

func (*LocationConditions) conditionType() TriggerType { return TriggerLocationBased }

type SpeedConditions struct {
	HighKmh         *float64 `json:"high_kmh,omitempty"`
	LowKmh          *float64 `json:"low_kmh,omitempty"`
	ChangePct       float64  `json:"change_pct,omitempty"`
	ChangeWindowSec int      `json:"change_window_sec,omitempty"`
}

func (*SpeedConditions) conditionType() TriggerType { return TriggerSpeedBased }

type EventConditions struct {
	Events map[EventType]bool `json:"events"`
}

func (*EventConditions) conditionType() TriggerType { return TriggerEventBased }

// StateConditions matches ambient weather/traffic/vehicle state.
type StateConditions struct {
	Weather         map[WeatherCondition]bool `json:"weather,omitempty"`
	Traffic         map[TrafficCondition]bool `json:"traffic,omitempty"`
	BatteryBelowPct *float64                  `json:"battery_below_pct,omitempty"`
	SignalBelowPct  *float64                  `json:"signal_below_pct,omitempty"`
}

func (*StateConditions) conditionType() TriggerType { return TriggerConditionBased }

type DeviationConditions struct {
	FromRouteM float64 `json:"from_route_m"`
}

func (*DeviationConditions) conditionType() TriggerType { return TriggerRouteDeviation }

type PerformanceConditions struct {
	FuelEfficiencyBelowKmpl *float64 `json:"fuel_efficiency_below_kmpl,omitempty"`
	IdleAboveMinutes        *float64 `json:"idle_above_minutes,omitempty"`
	StopAboveMinutes        *float64 `json:"stop_above_minutes,omitempty"`
}

func (*PerformanceConditions) conditionType() TriggerType { return TriggerPerformanceBased }

type IntegrationSystem struct {
	Enabled            bool `json:"enabled"`
	UpdateEveryMinutes int  `json:"update_every_minutes"`
}

type IntegrationConditions struct {
	Systems map[string]IntegrationSystem `json:"systems"`
}

func (*IntegrationConditions) conditionType() TriggerType { return TriggerIntegrationBased }

// DecodeConditions unmarshals a stored JSONB payload into the variant for the
// given trigger type. An unrecognized type is not an error: the trigger loads
// with nil conditions and can never fire.
func DecodeConditions(t TriggerType, raw []byte) (TriggerConditions, error) {
	var c TriggerConditions
	switch t {
	case TriggerTimeBased:
		c = &TimeConditions{}
	case TriggerLocationBased:
		c = &LocationConditions{}
	case TriggerSpeedBased:
		c = &SpeedConditions{}
	case TriggerEventBased:
		c = &EventConditions{}
	case TriggerConditionBased:
		c = &StateConditions{}
	case TriggerRouteDeviation:
		c = &DeviationConditions{}
	case TriggerPerformanceBased:
		c = &PerformanceConditions{}
	case TriggerIntegrationBased:
		c = &IntegrationConditions{}
	default:
		return nil, nil
	}
	if len(raw) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decoding %s conditions: %w", t, err)
	}
	return c, nil
}
