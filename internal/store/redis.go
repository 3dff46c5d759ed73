package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-monitor/simulation/internal/config"
	"fleet-monitor/simulation/internal/domain"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// state keys outlive three ticks so a skipped pass doesn't blank the map
	return &RedisStore{client: client, ttl: 3 * cfg.TickInterval()}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// PipelineStateUpdate publishes the vehicle's live snapshot: hash state,
// fleet geo set, and the telemetry pub/sub channel, in one round trip.
func (r *RedisStore) PipelineStateUpdate(ctx context.Context, v *domain.Vehicle, sample *domain.TelemetrySample) error {
	stateData := map[string]interface{}{
		"vehicle_id":         v.ID,
		"fleet_id":           v.FleetID,
		"lat":                sample.Location.Lat,
		"lng":                sample.Location.Lon,
		"heading_deg":        sample.HeadingDeg,
		"speed_kmh":          sample.SpeedKmh,
		"weather":            string(sample.Weather),
		"traffic":            string(sample.Traffic),
		"battery_pct":        sample.BatteryPct,
		"signal":             sample.SignalStrength,
		"route_progress_pct": sample.RouteProgressPct,
		"route_deviation_m":  sample.RouteDeviationM,
		"timestamp":          sample.Timestamp.Unix(),
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	vehicleStateKey := fmt.Sprintf("vehicle:%s:state", v.ID)
	geoKey := fmt.Sprintf("fleet:%s:geo", v.FleetID)
	pubChannel := fmt.Sprintf("fleet:%s:telemetry", v.FleetID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, vehicleStateKey, stateData)
	pipe.Expire(ctx, vehicleStateKey, r.ttl)
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      v.ID,
		Longitude: sample.Location.Lon,
		Latitude:  sample.Location.Lat,
	})
	pipe.Publish(ctx, pubChannel, pubPayload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// PublishTriggerFired notifies downstream alert/analytics consumers of a
// trigger-tagged history entry.
func (r *RedisStore) PublishTriggerFired(ctx context.Context, entry *domain.HistoryEntry) error {
	payload, err := json.Marshal(map[string]interface{}{
		"entry_id":     entry.ID,
		"vehicle_id":   entry.VehicleID,
		"fleet_id":     entry.FleetID,
		"trigger_id":   entry.TriggerID,
		"trigger_type": string(entry.TriggerType),
		"lat":          entry.Sample.Location.Lat,
		"lng":          entry.Sample.Location.Lon,
		"speed_kmh":    entry.Sample.SpeedKmh,
		"triggered_at": entry.Timestamp.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal trigger payload: %w", err)
	}

	channel := fmt.Sprintf("fleet:%s:triggers", entry.FleetID)
	return r.client.Publish(ctx, channel, payload).Err()
}
