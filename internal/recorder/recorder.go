// Package recorder turns a tick's telemetry and trigger firings into durable
// history plus the vehicle's live snapshot. The database write is the unit of
// work; Redis and the websocket feed are best-effort fan-out after commit.
package recorder

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"fleet-monitor/simulation/internal/domain"
	"fleet-monitor/simulation/internal/metrics"
	"fleet-monitor/simulation/internal/trigger"
)

// TickStore persists history entries, trigger state, and the vehicle
// snapshot atomically.
type TickStore interface {
	RecordTick(ctx context.Context, v *domain.Vehicle, entries []*domain.HistoryEntry, fired []*domain.Trigger) error
}

// LiveStore pushes the post-commit live view to downstream consumers.
type LiveStore interface {
	PipelineStateUpdate(ctx context.Context, v *domain.Vehicle, sample *domain.TelemetrySample) error
	PublishTriggerFired(ctx context.Context, entry *domain.HistoryEntry) error
}

// Broadcaster fans history entries out to connected dashboard clients.
type Broadcaster interface {
	Broadcast(payload []byte)
}

type Recorder struct {
	db   TickStore
	live LiveStore
	feed Broadcaster
}

// New wires a recorder. live and feed may be nil; recording then stops at the
// durable write.
func New(db TickStore, live LiveStore, feed Broadcaster) *Recorder {
	return &Recorder{db: db, live: live, feed: feed}
}

// Record writes one baseline history entry for the tick plus one entry per
// fired trigger, and folds the sample into the vehicle snapshot. Entries and
// snapshot commit together; on failure the tick is dropped for this vehicle
// and retried naturally at the next tick.
func (r *Recorder) Record(
	ctx context.Context,
	v *domain.Vehicle,
	sample *domain.TelemetrySample,
	firings []trigger.Firing,
) ([]*domain.HistoryEntry, error) {
	entries := make([]*domain.HistoryEntry, 0, len(firings)+1)
	entries = append(entries, &domain.HistoryEntry{
		ID:        uuid.NewString(),
		VehicleID: v.ID,
		FleetID:   v.FleetID,
		Timestamp: sample.Timestamp,
		Sample:    *sample,
	})

	fired := make([]*domain.Trigger, 0, len(firings))
	for _, f := range firings {
		entries = append(entries, &domain.HistoryEntry{
			ID:          uuid.NewString(),
			VehicleID:   v.ID,
			FleetID:     v.FleetID,
			TriggerID:   f.Trigger.ID,
			TriggerType: f.Trigger.Type,
			Timestamp:   f.At,
			Sample:      *sample,
		})
		fired = append(fired, f.Trigger)
	}

	applySnapshot(v, sample)

	if err := r.db.RecordTick(ctx, v, entries, fired); err != nil {
		metrics.DBWriteFailures.Add(1)
		return nil, err
	}
	metrics.HistoryWritten.Add(int64(len(entries)))

	if r.live != nil {
		if err := r.live.PipelineStateUpdate(ctx, v, sample); err != nil {
			metrics.RedisFailures.Add(1)
			log.WithField("vehicle_id", v.ID).Warnf("Live state update failed: %v", err)
		}
		for _, e := range entries {
			if !e.FromTrigger() {
				continue
			}
			if err := r.live.PublishTriggerFired(ctx, e); err != nil {
				metrics.RedisFailures.Add(1)
				log.WithField("vehicle_id", v.ID).Warnf("Trigger publish failed: %v", err)
			}
		}
	}

	if r.feed != nil {
		for _, e := range entries {
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			r.feed.Broadcast(payload)
		}
	}

	return entries, nil
}

// applySnapshot overwrites the vehicle's mutable state from the sample,
// keeping bookkeeping the sample cannot carry (external update times).
func applySnapshot(v *domain.Vehicle, sample *domain.TelemetrySample) {
	v.CurrentLocation = sample.Location
	v.LocationUpdatedAt = sample.Timestamp
	v.CurrentSpeedKmh = sample.SpeedKmh

	external := v.Context.ExternalUpdates
	v.Context = domain.VehicleContext{
		Weather:            sample.Weather,
		Traffic:            sample.Traffic,
		FuelEfficiencyKmpl: sample.FuelEfficiencyKmpl,
		IdleMinutes:        sample.IdleMinutes,
		BatteryPct:         sample.BatteryPct,
		SignalStrength:     sample.SignalStrength,
		RouteProgressPct:   sample.RouteProgressPct,
		DistanceTraveledKm: sample.DistanceTraveledKm,
		ExternalUpdates:    external,
	}
}
