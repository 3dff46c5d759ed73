// Package trigger holds the per-type trigger predicates and the evaluation
// engine that runs them against each tick's telemetry.
package trigger

import (
	"time"

	"fleet-monitor/simulation/internal/domain"
	"fleet-monitor/simulation/internal/geo"
)

// Input is everything a predicate may look at: the tick's immutable sample,
// the previous tick's sample when one exists, the vehicle snapshot, and the
// evaluation time.
type Input struct {
	Current *domain.TelemetrySample
	Prior   *domain.TelemetrySample
	Vehicle *domain.Vehicle
	Now     time.Time
}

// Matches dispatches on the trigger's condition variant. Nil conditions
// (unknown stored type) and any unrecognized variant evaluate to false.
func Matches(tr *domain.Trigger, in Input) bool {
	if in.Current == nil {
		return false
	}
	switch c := tr.Conditions.(type) {
	case *domain.TimeConditions:
		return matchTime(c, tr.LastTriggered, in.Now)
	case *domain.LocationConditions:
		return matchLocation(c, in)
	case *domain.SpeedConditions:
		return matchSpeed(c, in)
	case *domain.EventConditions:
		return matchEvent(c, in.Current)
	case *domain.StateConditions:
		return matchState(c, in.Current)
	case *domain.DeviationConditions:
		return in.Current.RouteDeviationM > c.FromRouteM
	case *domain.PerformanceConditions:
		return matchPerformance(c, in.Current)
	case *domain.IntegrationConditions:
		return matchIntegration(c, in.Vehicle, in.Now)
	default:
		return false
	}
}

// matchTime fires when now falls inside one of the configured windows and
// the window's update interval has elapsed since the last firing. An unset
// LastTriggered means the trigger is immediately eligible.
func matchTime(c *domain.TimeConditions, lastTriggered *time.Time, now time.Time) bool {
	for _, w := range c.Windows {
		if !insideWindow(w, now) {
			continue
		}
		if lastTriggered == nil {
			return true
		}
		interval := time.Duration(w.UpdateIntervalMinutes) * time.Minute
		if now.Sub(*lastTriggered) >= interval {
			return true
		}
	}
	return false
}

func insideWindow(w domain.TimeWindow, now time.Time) bool {
	start, okS := parseClock(w.Start)
	end, okE := parseClock(w.End)
	if !okS || !okE {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	if start <= end {
		return minutes >= start && minutes <= end
	}
	// window wraps midnight
	return minutes >= start || minutes <= end
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// matchLocation fires inside the configured geofence, or when the vehicle
// has moved at least the distance threshold since the prior sample. The
// movement clause needs a prior sample; without one it is false.
func matchLocation(c *domain.LocationConditions, in Input) bool {
	if c.Geofence != nil {
		if geo.DistanceMeters(in.Current.Location, c.Geofence.Center) <= c.Geofence.RadiusM {
			return true
		}
	}
	if c.DistanceThresholdM > 0 && in.Prior != nil {
		if geo.DistanceMeters(in.Prior.Location, in.Current.Location) >= c.DistanceThresholdM {
			return true
		}
	}
	return false
}

// matchSpeed fires on inclusive high/low thresholds, or on a percentage
// change from the prior sample's speed within the configured window.
func matchSpeed(c *domain.SpeedConditions, in Input) bool {
	speed := in.Current.SpeedKmh
	if c.HighKmh != nil && speed >= *c.HighKmh {
		return true
	}
	if c.LowKmh != nil && speed <= *c.LowKmh {
		return true
	}
	if c.ChangePct > 0 && in.Prior != nil && in.Prior.SpeedKmh > 0 {
		if c.ChangeWindowSec > 0 {
			gap := in.Current.Timestamp.Sub(in.Prior.Timestamp)
			if gap > time.Duration(c.ChangeWindowSec)*time.Second {
				return false
			}
		}
		change := (speed - in.Prior.SpeedKmh) / in.Prior.SpeedKmh * 100
		if change < 0 {
			change = -change
		}
		return change > c.ChangePct
	}
	return false
}

func matchEvent(c *domain.EventConditions, sample *domain.TelemetrySample) bool {
	for _, ev := range sample.Events {
		if c.Events[ev] {
			return true
		}
	}
	return false
}

func matchState(c *domain.StateConditions, sample *domain.TelemetrySample) bool {
	if c.Weather[sample.Weather] {
		return true
	}
	if c.Traffic[sample.Traffic] {
		return true
	}
	if c.BatteryBelowPct != nil && sample.BatteryPct < *c.BatteryBelowPct {
		return true
	}
	if c.SignalBelowPct != nil && sample.SignalStrength < *c.SignalBelowPct {
		return true
	}
	return false
}

// matchPerformance fires when any enabled metric meets or exceeds its
// threshold: efficiency at or below the floor, idle or stop time at or above
// the ceiling.
func matchPerformance(c *domain.PerformanceConditions, sample *domain.TelemetrySample) bool {
	if c.FuelEfficiencyBelowKmpl != nil && sample.FuelEfficiencyKmpl <= *c.FuelEfficiencyBelowKmpl {
		return true
	}
	if c.IdleAboveMinutes != nil && sample.IdleMinutes >= *c.IdleAboveMinutes {
		return true
	}
	if c.StopAboveMinutes != nil && sample.StopDurationMinutes >= *c.StopAboveMinutes {
		return true
	}
	return false
}

// matchIntegration fires when any enabled external system's last recorded
// update is at least its configured update frequency in the past. A system
// with no recorded update at all counts as overdue.
func matchIntegration(c *domain.IntegrationConditions, v *domain.Vehicle, now time.Time) bool {
	if v == nil {
		return false
	}
	for name, sys := range c.Systems {
		if !sys.Enabled {
			continue
		}
		last, ok := v.Context.ExternalUpdates[name]
		if !ok {
			return true
		}
		if now.Sub(last) >= time.Duration(sys.UpdateEveryMinutes)*time.Minute {
			return true
		}
	}
	return false
}
