package sim

import "fleet-monitor/simulation/internal/domain"

// A Scenario is a short ordered list of canned telemetry frames describing a
// driving situation. Vehicles without an assigned route replay the scenario
// library frame by frame, wrapping to the next scenario after exhausting the
// current one. Per-vehicle randomization keeps vehicles sharing a scenario
// from producing identical samples.
type Scenario struct {
	Name   string
	Frames []Frame
}

type Frame struct {
	Location            domain.Location
	SpeedKmh            float64
	HeadingDeg          float64
	Weather             domain.WeatherCondition
	Traffic             domain.TrafficCondition
	FuelEfficiencyKmpl  float64
	IdleMinutes         float64
	StopDurationMinutes float64
	BatteryDrainPct     float64
	SignalStrength      float64
	Events              []domain.EventType
}

// DefaultScenarios is the built-in replay library. Anchor coordinates are in
// central Dublin; each vehicle gets its own stable offset so the fleet does
// not stack on one point.
var DefaultScenarios = []Scenario{
	{
		Name: "morning_rush",
		Frames: []Frame{
			{Location: domain.Location{Lat: 53.3444, Lon: -6.2594}, SpeedKmh: 0, HeadingDeg: 45, Weather: domain.WeatherClear, Traffic: domain.TrafficHeavy, FuelEfficiencyKmpl: 0, IdleMinutes: 2, BatteryDrainPct: 0.1, SignalStrength: 92, Events: []domain.EventType{domain.EventTripStart}},
			{Location: domain.Location{Lat: 53.3452, Lon: -6.2581}, SpeedKmh: 18, HeadingDeg: 48, Weather: domain.WeatherClear, Traffic: domain.TrafficHeavy, FuelEfficiencyKmpl: 7.5, BatteryDrainPct: 0.1, SignalStrength: 90},
			{Location: domain.Location{Lat: 53.3461, Lon: -6.2566}, SpeedKmh: 12, HeadingDeg: 50, Weather: domain.WeatherClear, Traffic: domain.TrafficHeavy, FuelEfficiencyKmpl: 6.8, IdleMinutes: 1, BatteryDrainPct: 0.1, SignalStrength: 88, Events: []domain.EventType{domain.EventHarshBraking}},
			{Location: domain.Location{Lat: 53.3470, Lon: -6.2549}, SpeedKmh: 26, HeadingDeg: 52, Weather: domain.WeatherClear, Traffic: domain.TrafficModerate, FuelEfficiencyKmpl: 9.2, BatteryDrainPct: 0.1, SignalStrength: 91},
			{Location: domain.Location{Lat: 53.3481, Lon: -6.2530}, SpeedKmh: 34, HeadingDeg: 55, Weather: domain.WeatherClear, Traffic: domain.TrafficModerate, FuelEfficiencyKmpl: 10.4, BatteryDrainPct: 0.1, SignalStrength: 93},
		},
	},
	{
		Name: "highway_cruise",
		Frames: []Frame{
			{Location: domain.Location{Lat: 53.3520, Lon: -6.2450}, SpeedKmh: 72, HeadingDeg: 80, Weather: domain.WeatherClear, Traffic: domain.TrafficLight, FuelEfficiencyKmpl: 14.8, BatteryDrainPct: 0.05, SignalStrength: 97},
			{Location: domain.Location{Lat: 53.3528, Lon: -6.2398}, SpeedKmh: 88, HeadingDeg: 82, Weather: domain.WeatherClear, Traffic: domain.TrafficLight, FuelEfficiencyKmpl: 15.6, BatteryDrainPct: 0.05, SignalStrength: 96},
			{Location: domain.Location{Lat: 53.3535, Lon: -6.2341}, SpeedKmh: 95, HeadingDeg: 84, Weather: domain.WeatherClear, Traffic: domain.TrafficLight, FuelEfficiencyKmpl: 15.1, BatteryDrainPct: 0.05, SignalStrength: 94},
			{Location: domain.Location{Lat: 53.3544, Lon: -6.2283}, SpeedKmh: 90, HeadingDeg: 85, Weather: domain.WeatherRain, Traffic: domain.TrafficLight, FuelEfficiencyKmpl: 14.2, BatteryDrainPct: 0.05, SignalStrength: 89},
		},
	},
	{
		Name: "evening_congestion",
		Frames: []Frame{
			{Location: domain.Location{Lat: 53.3405, Lon: -6.2650}, SpeedKmh: 22, HeadingDeg: 230, Weather: domain.WeatherRain, Traffic: domain.TrafficHeavy, FuelEfficiencyKmpl: 8.1, BatteryDrainPct: 0.15, SignalStrength: 84},
			{Location: domain.Location{Lat: 53.3398, Lon: -6.2664}, SpeedKmh: 6, HeadingDeg: 232, Weather: domain.WeatherRain, Traffic: domain.TrafficHeavy, FuelEfficiencyKmpl: 5.9, IdleMinutes: 3, BatteryDrainPct: 0.15, SignalStrength: 82, Events: []domain.EventType{domain.EventIdleStart}},
			{Location: domain.Location{Lat: 53.3396, Lon: -6.2668}, SpeedKmh: 0, HeadingDeg: 232, Weather: domain.WeatherRain, Traffic: domain.TrafficHeavy, FuelEfficiencyKmpl: 0, IdleMinutes: 6, StopDurationMinutes: 4, BatteryDrainPct: 0.2, SignalStrength: 81},
			{Location: domain.Location{Lat: 53.3390, Lon: -6.2681}, SpeedKmh: 14, HeadingDeg: 235, Weather: domain.WeatherFog, Traffic: domain.TrafficHeavy, FuelEfficiencyKmpl: 7.2, BatteryDrainPct: 0.15, SignalStrength: 83, Events: []domain.EventType{domain.EventIdleEnd}},
			{Location: domain.Location{Lat: 53.3383, Lon: -6.2697}, SpeedKmh: 28, HeadingDeg: 238, Weather: domain.WeatherFog, Traffic: domain.TrafficModerate, FuelEfficiencyKmpl: 9.6, BatteryDrainPct: 0.1, SignalStrength: 86},
		},
	},
	{
		Name: "depot_idle",
		Frames: []Frame{
			{Location: domain.Location{Lat: 53.3300, Lon: -6.2800}, SpeedKmh: 0, HeadingDeg: 0, Weather: domain.WeatherClear, Traffic: domain.TrafficLight, FuelEfficiencyKmpl: 0, IdleMinutes: 10, StopDurationMinutes: 10, BatteryDrainPct: 0.3, SignalStrength: 99, Events: []domain.EventType{domain.EventStopArrival}},
			{Location: domain.Location{Lat: 53.3300, Lon: -6.2800}, SpeedKmh: 0, HeadingDeg: 0, Weather: domain.WeatherClear, Traffic: domain.TrafficLight, FuelEfficiencyKmpl: 0, IdleMinutes: 15, StopDurationMinutes: 15, BatteryDrainPct: 0.3, SignalStrength: 99},
			{Location: domain.Location{Lat: 53.3302, Lon: -6.2797}, SpeedKmh: 9, HeadingDeg: 15, Weather: domain.WeatherClear, Traffic: domain.TrafficLight, FuelEfficiencyKmpl: 6.4, BatteryDrainPct: 0.1, SignalStrength: 98, Events: []domain.EventType{domain.EventStopDeparture}},
		},
	},
}

// TotalFrames returns the length of the flattened scenario list.
func TotalFrames(scenarios []Scenario) int {
	n := 0
	for _, sc := range scenarios {
		n += len(sc.Frames)
	}
	return n
}

// FrameAt maps a flat cursor position to its scenario and frame. The cursor
// wraps modulo the total frame count.
func FrameAt(scenarios []Scenario, cursor int) (Scenario, Frame) {
	total := TotalFrames(scenarios)
	if total == 0 {
		return Scenario{}, Frame{}
	}
	cursor %= total
	for _, sc := range scenarios {
		if cursor < len(sc.Frames) {
			return sc, sc.Frames[cursor]
		}
		cursor -= len(sc.Frames)
	}
	return Scenario{}, Frame{}
}
