package domain

import "time"

type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "active"
	VehicleInactive    VehicleStatus = "inactive"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// Vehicle is the engine's view of a fleet vehicle. The snapshot fields
// (CurrentLocation, CurrentSpeedKmh, Context) are owned by the recorder;
// everything else is read-only input loaded from storage.
type Vehicle struct {
	ID              string
	FleetID         string
	Name            string
	Status          VehicleStatus
	AssignedRouteID string // empty means scenario replay
	DriverID        string

	CurrentLocation   Location
	LocationUpdatedAt time.Time
	CurrentSpeedKmh   float64

	Context VehicleContext
}

// VehicleContext is the mutable context blob carried on the vehicle snapshot.
// It is derived from the latest telemetry sample plus bookkeeping the sample
// alone cannot provide (external system update times).
type VehicleContext struct {
	Weather            WeatherCondition     `json:"weather,omitempty"`
	Traffic            TrafficCondition     `json:"traffic,omitempty"`
	FuelEfficiencyKmpl float64              `json:"fuel_efficiency_kmpl,omitempty"`
	IdleMinutes        float64              `json:"idle_minutes,omitempty"`
	BatteryPct         float64              `json:"battery_pct,omitempty"`
	SignalStrength     float64              `json:"signal_strength,omitempty"`
	RouteProgressPct   float64              `json:"route_progress_pct,omitempty"`
	DistanceTraveledKm float64              `json:"distance_traveled_km,omitempty"`
	ExternalUpdates    map[string]time.Time `json:"external_updates,omitempty"`
}

type Stop struct {
	ID       string
	Seq      int
	Name     string
	Location Location
}

// Route is an ordered stop sequence. Immutable during a simulation run.
type Route struct {
	ID    string
	Name  string
	Stops []Stop
}

// Followable reports whether the route has enough stops to interpolate along.
func (r *Route) Followable() bool {
	return r != nil && len(r.Stops) >= 2
}
