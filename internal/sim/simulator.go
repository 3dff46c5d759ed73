// Package sim produces one synthetic telemetry sample per vehicle per tick.
// Vehicles with an assigned route advance along it under a compressed time
// scale; vehicles without one replay the canned scenario library.
package sim

import (
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"fleet-monitor/simulation/internal/config"
	"fleet-monitor/simulation/internal/domain"
	"fleet-monitor/simulation/internal/geo"
)

type Simulator struct {
	cycle       time.Duration
	travel      time.Duration
	tick        time.Duration
	jitterDeg   float64
	jitter      bool
	variation   float64 // percent
	scenarios   []Scenario
	epoch       time.Time

	mu   sync.Mutex
	runs map[string]*runState
	rng  *rand.Rand
}

// runState is the per-vehicle bookkeeping that survives between ticks:
// scenario cursor, per-trip speed aggregates, battery level, odometer.
type runState struct {
	cursor       int
	cycleIndex   int64
	lastSegment  int
	lastProgress float64
	speedSum     float64
	maxSpeed     float64
	samples      int
	batteryPct   float64
	distanceKm   float64
}

func New(cfg *config.Config, epoch time.Time) *Simulator {
	return &Simulator{
		cycle:     time.Duration(cfg.CycleSeconds) * time.Second,
		travel:    time.Duration(cfg.AssumedTravelSeconds) * time.Second,
		tick:      cfg.TickInterval(),
		jitterDeg: cfg.JitterDegrees,
		jitter:    cfg.JitterEnabled,
		variation: cfg.VariationPct,
		scenarios: DefaultScenarios,
		epoch:     epoch,
		runs:      make(map[string]*runState),
		rng:       rand.New(rand.NewSource(epoch.UnixNano())),
	}
}

// Sample produces the vehicle's telemetry for this tick. A nil or
// non-followable route falls back to scenario replay; the sample is always
// fully populated and speeds are clamped to >= 0.
func (s *Simulator) Sample(v *domain.Vehicle, route *domain.Route, now time.Time) *domain.TelemetrySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[v.ID]
	if !ok {
		run = &runState{batteryPct: 100, lastSegment: -1}
		s.runs[v.ID] = run
	}

	var sample *domain.TelemetrySample
	if route.Followable() {
		sample = s.sampleRoute(v, route, run, now)
	} else {
		sample = s.sampleScenario(v, run, now)
	}

	if sample.SpeedKmh < 0 {
		sample.SpeedKmh = 0
	}
	run.speedSum += sample.SpeedKmh
	run.samples++
	if sample.SpeedKmh > run.maxSpeed {
		run.maxSpeed = sample.SpeedKmh
	}
	sample.AvgSpeedKmh = run.speedSum / float64(run.samples)
	sample.MaxSpeedKmh = run.maxSpeed
	sample.Timestamp = now
	if sample.Events == nil {
		sample.Events = []domain.EventType{}
	}
	return sample
}

// Forget drops the per-vehicle run state. Called when a vehicle leaves the
// working set so cursors and odometers do not leak.
func (s *Simulator) Forget(vehicleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, vehicleID)
}

func (s *Simulator) sampleRoute(v *domain.Vehicle, route *domain.Route, run *runState, now time.Time) *domain.TelemetrySample {
	cycleSec := s.cycle.Seconds()
	elapsed := now.Sub(s.epoch).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	cycleIndex := int64(elapsed / cycleSec)
	inCycle := elapsed - float64(cycleIndex)*cycleSec

	raw := inCycle / cycleSec
	if raw > 1 {
		raw = 1
	}
	compression := s.travel.Seconds() / cycleSec
	progress := raw * compression
	if progress > 1 {
		progress = 1
	}

	var events []domain.EventType
	if cycleIndex != run.cycleIndex || run.lastSegment < 0 {
		// new traversal: reset per-trip aggregates
		run.cycleIndex = cycleIndex
		run.lastSegment = 0
		run.lastProgress = 0
		run.speedSum = 0
		run.maxSpeed = 0
		run.samples = 0
		events = append(events, domain.EventTripStart)
	}

	stops := route.Stops
	scaled := progress * float64(len(stops)-1)
	seg := int(scaled)
	if seg > len(stops)-2 {
		seg = len(stops) - 2
	}
	frac := scaled - float64(seg)

	ideal := geo.Interpolate(stops[seg].Location, stops[seg+1].Location, frac)
	pos := ideal
	if s.jitter {
		pos.Lat += (s.rng.Float64()*2 - 1) * s.jitterDeg
		pos.Lon += (s.rng.Float64()*2 - 1) * s.jitterDeg
	}
	deviation := geo.DistanceMeters(pos, ideal)
	heading := geo.BearingDegrees(stops[seg].Location, stops[seg+1].Location)

	if seg > run.lastSegment {
		events = append(events, domain.EventStopArrival, domain.EventStopDeparture)
	}
	if progress >= 1 && run.lastProgress < 1 {
		events = append(events, domain.EventStopArrival, domain.EventTripEnd)
	}
	run.lastSegment = seg
	run.lastProgress = progress

	totalM := RouteLengthMeters(route)
	speed := 0.0
	idle := 0.0
	stopDur := 0.0
	if progress < 1 {
		// simulated cruising speed with a stable per-vehicle spread
		speed = totalM / s.travel.Seconds() * 3.6 * s.factor(v.ID, "speed")
	} else {
		idle = (inCycle - cycleSec/compression) * compression / 60
		if idle < 0 {
			idle = 0
		}
		stopDur = idle
	}

	weather, traffic := ambient(v.ID, cycleIndex)

	run.batteryPct -= 0.05 * s.factor(v.ID, "battery")
	if run.batteryPct < 5 {
		run.batteryPct = 100
	}

	return &domain.TelemetrySample{
		Location:            pos,
		HeadingDeg:          heading,
		SpeedKmh:            speed,
		Weather:             weather,
		Traffic:             traffic,
		FuelEfficiencyKmpl:  fuelEfficiency(speed, traffic),
		IdleMinutes:         idle,
		StopDurationMinutes: stopDur,
		BatteryPct:          run.batteryPct,
		SignalStrength:      clampPct(85 + hashUnit(v.ID, "signal")*15),
		Events:              events,
		RouteDeviationM:     deviation,
		RouteProgressPct:    progress * 100,
		DistanceTraveledKm:  totalM * progress / 1000,
		SimulatedMinutes:    inCycle * compression / 60,
	}
}

func (s *Simulator) sampleScenario(v *domain.Vehicle, run *runState, now time.Time) *domain.TelemetrySample {
	_, frame := FrameAt(s.scenarios, run.cursor)
	run.cursor++

	speed := frame.SpeedKmh * s.factor(v.ID, "speed")
	heading := math.Mod(frame.HeadingDeg+hashUnit(v.ID, "heading")*36+360, 360)

	// stable per-vehicle spatial offset so shared scenarios don't stack,
	// plus the usual GPS jitter
	pos := frame.Location
	pos.Lat += hashUnit(v.ID, "lat") * 0.01
	pos.Lon += hashUnit(v.ID, "lon") * 0.01
	if s.jitter {
		pos.Lat += (s.rng.Float64()*2 - 1) * s.jitterDeg
		pos.Lon += (s.rng.Float64()*2 - 1) * s.jitterDeg
	}

	run.batteryPct -= frame.BatteryDrainPct * s.factor(v.ID, "battery")
	if run.batteryPct < 5 {
		run.batteryPct = 100
	}
	run.distanceKm += speed * s.tick.Seconds() / 3600

	elapsed := now.Sub(s.epoch).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return &domain.TelemetrySample{
		Location:            pos,
		HeadingDeg:          heading,
		SpeedKmh:            speed,
		Weather:             frame.Weather,
		Traffic:             frame.Traffic,
		FuelEfficiencyKmpl:  frame.FuelEfficiencyKmpl * s.factor(v.ID, "fuel"),
		IdleMinutes:         frame.IdleMinutes,
		StopDurationMinutes: frame.StopDurationMinutes,
		BatteryPct:          run.batteryPct,
		SignalStrength:      clampPct(frame.SignalStrength * s.factor(v.ID, "signal")),
		Events:              append([]domain.EventType(nil), frame.Events...),
		RouteDeviationM:     0,
		RouteProgressPct:    0,
		DistanceTraveledKm:  run.distanceKm,
		SimulatedMinutes:    elapsed * s.compressionFactor() / 60,
	}
}

func (s *Simulator) compressionFactor() float64 {
	if s.cycle <= 0 {
		return 1
	}
	return s.travel.Seconds() / s.cycle.Seconds()
}

// factor returns a stable multiplier in [1-v, 1+v] for the configured
// variation percentage, keyed on vehicle id and attribute.
func (s *Simulator) factor(vehicleID, attr string) float64 {
	return 1 + hashUnit(vehicleID, attr)*s.variation/100
}

// hashUnit hashes the parts onto [-1, 1], stable across runs.
func hashUnit(parts ...string) float64 {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return float64(h.Sum32()%2001)/1000 - 1
}

// RouteLengthMeters sums the segment lengths of the route.
func RouteLengthMeters(route *domain.Route) float64 {
	total := 0.0
	for i := 0; i+1 < len(route.Stops); i++ {
		total += geo.DistanceMeters(route.Stops[i].Location, route.Stops[i+1].Location)
	}
	return total
}

// ambient picks weather and traffic for a route traversal, stable for the
// whole cycle so conditions don't flicker tick to tick.
func ambient(vehicleID string, cycleIndex int64) (domain.WeatherCondition, domain.TrafficCondition) {
	weathers := []domain.WeatherCondition{
		domain.WeatherClear, domain.WeatherClear, domain.WeatherClear,
		domain.WeatherRain, domain.WeatherFog,
	}
	traffics := []domain.TrafficCondition{
		domain.TrafficLight, domain.TrafficModerate, domain.TrafficModerate, domain.TrafficHeavy,
	}
	h := fnv.New64a()
	h.Write([]byte(vehicleID))
	seed := h.Sum64() + uint64(cycleIndex)
	return weathers[seed%uint64(len(weathers))], traffics[(seed/7)%uint64(len(traffics))]
}

// fuelEfficiency is a coarse model: best around cruising speed, worse in
// heavy traffic and at crawl speeds.
func fuelEfficiency(speedKmh float64, traffic domain.TrafficCondition) float64 {
	if speedKmh <= 0 {
		return 0
	}
	eff := 15 - math.Abs(speedKmh-65)*0.08
	if traffic == domain.TrafficHeavy {
		eff -= 3
	}
	if eff < 3 {
		eff = 3
	}
	return eff
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
