package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"fleet-monitor/simulation/internal/config"
	"fleet-monitor/simulation/internal/domain"
)

type TimescaleStore struct {
	pool *pgxpool.Pool
}

func NewTimescaleStore(ctx context.Context, cfg *config.Config) (*TimescaleStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// LoadVehicles returns the active fleet with current snapshot state.
func (s *TimescaleStore) LoadVehicles(ctx context.Context) ([]*domain.Vehicle, error) {
	query := `
		SELECT id, fleet_id, name, status, assigned_route_id, driver_id,
		       current_lat, current_lon, current_speed_kmh, location_updated_at, context
		FROM vehicles
		WHERE status = 'active'
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v := &domain.Vehicle{}
		var (
			routeID, driverID *string
			updatedAt         *time.Time
			contextRaw        []byte
		)
		if err := rows.Scan(
			&v.ID, &v.FleetID, &v.Name, &v.Status, &routeID, &driverID,
			&v.CurrentLocation.Lat, &v.CurrentLocation.Lon, &v.CurrentSpeedKmh,
			&updatedAt, &contextRaw,
		); err != nil {
			return nil, fmt.Errorf("scanning vehicle: %w", err)
		}
		if routeID != nil {
			v.AssignedRouteID = *routeID
		}
		if driverID != nil {
			v.DriverID = *driverID
		}
		if updatedAt != nil {
			v.LocationUpdatedAt = *updatedAt
		}
		if len(contextRaw) > 0 {
			if err := json.Unmarshal(contextRaw, &v.Context); err != nil {
				log.WithField("vehicle_id", v.ID).Warnf("Discarding malformed context blob: %v", err)
			}
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// LoadRoutes returns all routes with their stops ordered by sequence.
func (s *TimescaleStore) LoadRoutes(ctx context.Context) (map[string]*domain.Route, error) {
	query := `
		SELECT r.id, r.name, st.id, st.seq, st.name, st.latitude, st.longitude
		FROM routes r
		JOIN route_stops st ON st.route_id = r.id
		ORDER BY r.id, st.seq
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading routes: %w", err)
	}
	defer rows.Close()

	routes := make(map[string]*domain.Route)
	for rows.Next() {
		var (
			routeID, routeName string
			stop               domain.Stop
		)
		if err := rows.Scan(&routeID, &routeName, &stop.ID, &stop.Seq, &stop.Name,
			&stop.Location.Lat, &stop.Location.Lon); err != nil {
			return nil, fmt.Errorf("scanning route stop: %w", err)
		}
		r, ok := routes[routeID]
		if !ok {
			r = &domain.Route{ID: routeID, Name: routeName}
			routes[routeID] = r
		}
		r.Stops = append(r.Stops, stop)
	}
	return routes, rows.Err()
}

// LoadTriggers returns all active triggers. A trigger whose stored conditions
// cannot be decoded still loads, with nil conditions, so it can never fire
// but also never poisons the working set.
func (s *TimescaleStore) LoadTriggers(ctx context.Context) ([]*domain.Trigger, error) {
	query := `
		SELECT id, vehicle_id, name, type, conditions, is_active, last_triggered
		FROM triggers
		WHERE is_active = true
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*domain.Trigger
	for rows.Next() {
		tr := &domain.Trigger{}
		var conditionsRaw []byte
		if err := rows.Scan(&tr.ID, &tr.VehicleID, &tr.Name, &tr.Type,
			&conditionsRaw, &tr.IsActive, &tr.LastTriggered); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}
		conditions, err := domain.DecodeConditions(tr.Type, conditionsRaw)
		if err != nil {
			log.WithFields(log.Fields{"trigger_id": tr.ID, "type": tr.Type}).
				Warnf("Loading trigger with undecodable conditions: %v", err)
		}
		tr.Conditions = conditions
		triggers = append(triggers, tr)
	}
	return triggers, rows.Err()
}

var historyColumns = []string{
	"id",
	"vehicle_id",
	"fleet_id",
	"trigger_id",
	"trigger_type",
	"timestamp",
	"latitude",
	"longitude",
	"heading_deg",
	"speed_kmh",
	"avg_speed_kmh",
	"max_speed_kmh",
	"weather",
	"traffic",
	"fuel_efficiency_kmpl",
	"idle_minutes",
	"stop_duration_minutes",
	"battery_pct",
	"signal_strength",
	"route_deviation_m",
	"route_progress_pct",
	"distance_traveled_km",
	"simulated_minutes",
	"events",
}

// historyRow flattens one entry into CopyFrom column order. A baseline entry
// carries NULL trigger columns.
func historyRow(e *domain.HistoryEntry) ([]interface{}, error) {
	var triggerID, triggerType interface{}
	if e.TriggerID != "" {
		triggerID = e.TriggerID
		triggerType = string(e.TriggerType)
	}
	eventsJSON, err := json.Marshal(e.Sample.Events)
	if err != nil {
		return nil, fmt.Errorf("encoding events: %w", err)
	}
	return []interface{}{
		e.ID,
		e.VehicleID,
		e.FleetID,
		triggerID,
		triggerType,
		e.Timestamp,
		e.Sample.Location.Lat,
		e.Sample.Location.Lon,
		e.Sample.HeadingDeg,
		e.Sample.SpeedKmh,
		e.Sample.AvgSpeedKmh,
		e.Sample.MaxSpeedKmh,
		string(e.Sample.Weather),
		string(e.Sample.Traffic),
		e.Sample.FuelEfficiencyKmpl,
		e.Sample.IdleMinutes,
		e.Sample.StopDurationMinutes,
		e.Sample.BatteryPct,
		e.Sample.SignalStrength,
		e.Sample.RouteDeviationM,
		e.Sample.RouteProgressPct,
		e.Sample.DistanceTraveledKm,
		e.Sample.SimulatedMinutes,
		string(eventsJSON),
	}, nil
}

// BatchInsertHistory bulk-appends history entries outside the tick
// transaction. Seed and backfill paths use it; live ticks go through
// RecordTick so the snapshot stays consistent with history.
func (s *TimescaleStore) BatchInsertHistory(ctx context.Context, entries []*domain.HistoryEntry) (int64, error) {
	copyRows := make([][]interface{}, len(entries))
	for i, e := range entries {
		row, err := historyRow(e)
		if err != nil {
			return 0, err
		}
		copyRows[i] = row
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"vehicle_history"}, historyColumns,
		pgx.CopyFromRows(copyRows))
	if err != nil {
		return 0, fmt.Errorf("CopyFrom failed for %d history entries: %w", len(entries), err)
	}
	return n, nil
}

// RecordTick appends the tick's history entries, bumps last_triggered for the
// fired triggers, and overwrites the vehicle snapshot — one transaction, so a
// reader never sees a snapshot without its history entry.
func (s *TimescaleStore) RecordTick(
	ctx context.Context,
	v *domain.Vehicle,
	entries []*domain.HistoryEntry,
	fired []*domain.Trigger,
) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tick transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	copyRows := make([][]interface{}, len(entries))
	for i, e := range entries {
		row, err := historyRow(e)
		if err != nil {
			return err
		}
		copyRows[i] = row
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"vehicle_history"}, historyColumns,
		pgx.CopyFromRows(copyRows)); err != nil {
		return fmt.Errorf("CopyFrom failed for %d history entries: %w", len(entries), err)
	}

	for _, tr := range fired {
		if _, err := tx.Exec(ctx,
			`UPDATE triggers SET last_triggered = $2 WHERE id = $1`,
			tr.ID, tr.LastTriggered,
		); err != nil {
			return fmt.Errorf("updating trigger %s: %w", tr.ID, err)
		}
	}

	contextJSON, err := json.Marshal(v.Context)
	if err != nil {
		return fmt.Errorf("encoding vehicle context: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE vehicles
		SET current_lat = $2, current_lon = $3, current_speed_kmh = $4,
		    location_updated_at = $5, context = $6
		WHERE id = $1`,
		v.ID, v.CurrentLocation.Lat, v.CurrentLocation.Lon, v.CurrentSpeedKmh,
		v.LocationUpdatedAt, string(contextJSON),
	); err != nil {
		return fmt.Errorf("updating vehicle snapshot %s: %w", v.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tick transaction: %w", err)
	}
	return nil
}
