package domain

import "time"

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type WeatherCondition string

const (
	WeatherClear WeatherCondition = "clear"
	WeatherRain  WeatherCondition = "rain"
	WeatherSnow  WeatherCondition = "snow"
	WeatherFog   WeatherCondition = "fog"
)

type TrafficCondition string

const (
	TrafficLight    TrafficCondition = "light"
	TrafficModerate TrafficCondition = "moderate"
	TrafficHeavy    TrafficCondition = "heavy"
)

type EventType string

const (
	EventTripStart     EventType = "trip_start"
	EventTripEnd       EventType = "trip_end"
	EventStopArrival   EventType = "stop_arrival"
	EventStopDeparture EventType = "stop_departure"
	EventHarshBraking  EventType = "harsh_braking"
	EventIdleStart     EventType = "idle_start"
	EventIdleEnd       EventType = "idle_end"
)

// TelemetrySample is produced fresh each tick for every vehicle. It is never
// persisted directly; the recorder folds it into history entries and the
// vehicle snapshot.
type TelemetrySample struct {
	Timestamp time.Time `json:"timestamp"`

	Location   Location `json:"location"`
	HeadingDeg float64  `json:"heading_deg"`

	SpeedKmh    float64 `json:"speed_kmh"`
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
	MaxSpeedKmh float64 `json:"max_speed_kmh"`

	Weather WeatherCondition `json:"weather"`
	Traffic TrafficCondition `json:"traffic"`

	FuelEfficiencyKmpl  float64 `json:"fuel_efficiency_kmpl"`
	IdleMinutes         float64 `json:"idle_minutes"`
	StopDurationMinutes float64 `json:"stop_duration_minutes"`

	BatteryPct     float64 `json:"battery_pct"`
	SignalStrength float64 `json:"signal_strength"`

	Events []EventType `json:"events"`

	RouteDeviationM    float64 `json:"route_deviation_m"`
	RouteProgressPct   float64 `json:"route_progress_pct"`
	DistanceTraveledKm float64 `json:"distance_traveled_km"`
	SimulatedMinutes   float64 `json:"simulated_minutes"`
}

// HasEvent reports whether the sample carries the given discrete event.
func (s *TelemetrySample) HasEvent(e EventType) bool {
	for _, ev := range s.Events {
		if ev == e {
			return true
		}
	}
	return false
}
