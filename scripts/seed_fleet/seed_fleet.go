package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"fleet-monitor/simulation/internal/config"
	"fleet-monitor/simulation/internal/domain"
	"fleet-monitor/simulation/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		seedGetEnv("DB_USER", "fleet_user"),
		seedGetEnv("DB_PASSWORD", "fleet_password"),
		seedGetEnv("DB_HOST", "localhost"),
		seedGetEnv("DB_PORT", "5432"),
		seedGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nRun scripts/init_db first", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_routes(ctx, conn)
	step2_vehicles(ctx, conn)
	step3_triggers(ctx, conn)
	step4_history(ctx)
	step5_verify(ctx, conn)

	fmt.Println("\n✅ Demo fleet seeded successfully")
	fmt.Println("   Run next: go run cmd/simulation/main.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Routes and stops
// ─────────────────────────────────────────────────────────────
func step1_routes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Routes ──────────────────────────────")

	routes := []struct {
		id, name string
		stops    []struct {
			name     string
			lat, lon float64
		}
	}{
		{
			id: "route_city_loop", name: "City Centre Loop",
			stops: []struct {
				name     string
				lat, lon float64
			}{
				{"Depot North", 53.3550, -6.2600},
				{"Parnell Square", 53.3530, -6.2650},
				{"College Green", 53.3440, -6.2590},
				{"St Stephen's Green", 53.3380, -6.2590},
				{"Depot South", 53.3320, -6.2650},
			},
		},
		{
			id: "route_airport_shuttle", name: "Airport Shuttle",
			stops: []struct {
				name     string
				lat, lon float64
			}{
				{"Central Station", 53.3500, -6.2500},
				{"Port Tunnel North", 53.3800, -6.2200},
				{"Airport T1", 53.4270, -6.2440},
			},
		},
	}

	for _, r := range routes {
		if _, err := conn.Exec(ctx, `
			INSERT INTO routes (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		`, r.id, r.name); err != nil {
			log.Fatalf("Failed to seed route %s: %v", r.id, err)
		}
		for i, st := range r.stops {
			stopID := fmt.Sprintf("%s_stop_%d", r.id, i)
			if _, err := conn.Exec(ctx, `
				INSERT INTO route_stops (id, route_id, seq, name, latitude, longitude)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE
				SET seq = EXCLUDED.seq, name = EXCLUDED.name,
				    latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude
			`, stopID, r.id, i, st.name, st.lat, st.lon); err != nil {
				log.Fatalf("Failed to seed stop %s: %v", stopID, err)
			}
		}
		fmt.Printf("  ✓ %-30s (%d stops)\n", r.name, len(r.stops))
	}
}

// ─────────────────────────────────────────────────────────────
// Step 2 — Vehicles
// ─────────────────────────────────────────────────────────────
func step2_vehicles(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Vehicles ────────────────────────────")

	vehicles := []struct {
		id, fleet, name, routeID, driver string
	}{
		{"veh_001", "fleet_dublin", "Bus 001", "route_city_loop", "driver_aoife"},
		{"veh_002", "fleet_dublin", "Bus 002", "route_city_loop", "driver_sean"},
		{"veh_003", "fleet_dublin", "Shuttle 003", "route_airport_shuttle", "driver_niamh"},
		// no assigned route — exercises scenario replay
		{"veh_004", "fleet_dublin", "Van 004", "", "driver_liam"},
	}

	for _, v := range vehicles {
		var routeID interface{}
		if v.routeID != "" {
			routeID = v.routeID
		}
		if _, err := conn.Exec(ctx, `
			INSERT INTO vehicles (id, fleet_id, name, status, assigned_route_id, driver_id)
			VALUES ($1, $2, $3, 'active', $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, assigned_route_id = EXCLUDED.assigned_route_id,
			    driver_id = EXCLUDED.driver_id, status = 'active'
		`, v.id, v.fleet, v.name, routeID, v.driver); err != nil {
			log.Fatalf("Failed to seed vehicle %s: %v", v.id, err)
		}
		mode := "route " + v.routeID
		if v.routeID == "" {
			mode = "scenario replay"
		}
		fmt.Printf("  ✓ %-12s %-14s ← %s\n", v.id, v.name, mode)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 3 — One trigger of every type
// ─────────────────────────────────────────────────────────────
func step3_triggers(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Triggers ────────────────────────────")

	triggers := []struct {
		id, vehicle, name, typ, conditions string
	}{
		{
			"trg_speeding", "veh_001", "Speeding over 80", "speed_based",
			`{"high_kmh": 80}`,
		},
		{
			"trg_crawling", "veh_002", "Crawling under 5", "speed_based",
			`{"low_kmh": 5}`,
		},
		{
			"trg_rush_hour", "veh_001", "Rush hour reporting", "time_based",
			`{"windows": [{"start": "07:00", "end": "10:00", "update_interval_minutes": 10},
			              {"start": "16:00", "end": "19:00", "update_interval_minutes": 10}]}`,
		},
		{
			"trg_depot_fence", "veh_002", "Inside depot geofence", "location_based",
			`{"geofence": {"center": {"lat": 53.3550, "lon": -6.2600}, "radius_m": 250}}`,
		},
		{
			"trg_harsh_braking", "veh_003", "Harsh braking", "event_based",
			`{"events": {"harsh_braking": true, "stop_arrival": false}}`,
		},
		{
			"trg_bad_weather", "veh_003", "Driving in snow or fog", "condition_based",
			`{"weather": {"snow": true, "fog": true}}`,
		},
		{
			"trg_off_route", "veh_001", "Off route by 500m", "route_deviation",
			`{"from_route_m": 500}`,
		},
		{
			"trg_long_idle", "veh_004", "Idling over 30 minutes", "performance_based",
			`{"idle_above_minutes": 30}`,
		},
		{
			"trg_maintenance_sync", "veh_004", "Maintenance system overdue", "integration_based",
			`{"systems": {"maintenance": {"enabled": true, "update_every_minutes": 60}}}`,
		},
	}

	for _, tr := range triggers {
		if _, err := conn.Exec(ctx, `
			INSERT INTO triggers (id, vehicle_id, name, type, conditions, is_active)
			VALUES ($1, $2, $3, $4, $5, true)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, type = EXCLUDED.type,
			    conditions = EXCLUDED.conditions, is_active = true
		`, tr.id, tr.vehicle, tr.name, tr.typ, tr.conditions); err != nil {
			log.Fatalf("Failed to seed trigger %s: %v", tr.id, err)
		}
		fmt.Printf("  ✓ %-22s %-18s on %s\n", tr.id, tr.typ, tr.vehicle)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Backfill a short baseline history
// ─────────────────────────────────────────────────────────────
func step4_history(ctx context.Context) {
	fmt.Println("\n── Step 4: History backfill ────────────────────")

	db, err := store.NewTimescaleStore(ctx, config.Load())
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer db.Close()

	// ten minutes of 30s baseline entries per vehicle, so dashboards and
	// history queries have data before the first live tick
	now := time.Now().UTC().Truncate(time.Minute)
	var entries []*domain.HistoryEntry
	for vi, vehicleID := range []string{"veh_001", "veh_002", "veh_003", "veh_004"} {
		for i := 0; i < 20; i++ {
			ts := now.Add(-time.Duration(20-i) * 30 * time.Second)
			entries = append(entries, &domain.HistoryEntry{
				ID:        uuid.NewString(),
				VehicleID: vehicleID,
				FleetID:   "fleet_dublin",
				Timestamp: ts,
				Sample: domain.TelemetrySample{
					Timestamp: ts,
					Location:  domain.Location{Lat: 53.3500 + float64(vi)*0.002, Lon: -6.2600},
					SpeedKmh:  25 + float64(i%5)*3,
					Weather:   domain.WeatherClear,
					Traffic:   domain.TrafficLight,
				},
			})
		}
	}

	n, err := db.BatchInsertHistory(ctx, entries)
	if err != nil {
		log.Fatalf("Failed to backfill history: %v", err)
	}
	fmt.Printf("  ✓ %d baseline entries backfilled\n", n)
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Verify
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	counts := []struct{ label, query string }{
		{"routes", "SELECT COUNT(*) FROM routes"},
		{"route stops", "SELECT COUNT(*) FROM route_stops"},
		{"active vehicles", "SELECT COUNT(*) FROM vehicles WHERE status = 'active'"},
		{"active triggers", "SELECT COUNT(*) FROM triggers WHERE is_active"},
		{"history entries", "SELECT COUNT(*) FROM vehicle_history"},
	}
	for _, c := range counts {
		var n int
		if err := conn.QueryRow(ctx, c.query).Scan(&n); err != nil {
			log.Fatalf("Verification failed for %s: %v", c.label, err)
		}
		fmt.Printf("  ✓ %-16s %d\n", c.label, n)
	}
}

func seedGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
