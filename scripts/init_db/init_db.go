package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_extensions(ctx, conn)
	step2_fleet_tables(ctx, conn)
	step3_triggers_table(ctx, conn)
	step4_history_table(ctx, conn)
	step5_indexes(ctx, conn)
	step6_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_fleet/seed_fleet.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	// TimescaleDB — required for the vehicle_history hypertable
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — vehicles / routes / route_stops
// ─────────────────────────────────────────────────────────────
func step2_fleet_tables(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Fleet tables ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS routes (
			id    TEXT PRIMARY KEY,
			name  TEXT NOT NULL
		);
	`, "routes table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS route_stops (
			id        TEXT             PRIMARY KEY,
			route_id  TEXT             NOT NULL REFERENCES routes(id) ON DELETE CASCADE,

			-- 0-based position along the route; the simulator interpolates
			-- between consecutive stops in seq order
			seq       INTEGER          NOT NULL,
			name      TEXT             NOT NULL,
			latitude  DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,

			CONSTRAINT uq_route_seq UNIQUE (route_id, seq)
		);
	`, "route_stops table created")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicles (
			id                  TEXT             PRIMARY KEY,
			fleet_id            TEXT             NOT NULL,
			name                TEXT             NOT NULL,

			-- Must match domain.VehicleStatus constants:
			-- active | inactive | maintenance
			-- Only active vehicles enter the working set
			status              TEXT             NOT NULL DEFAULT 'active',

			-- NULL means no followable route; the simulator falls back
			-- to scenario replay for this vehicle
			assigned_route_id   TEXT             REFERENCES routes(id),
			driver_id           TEXT,

			-- Snapshot columns — overwritten every tick by the recorder
			current_lat         DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_lon         DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_speed_kmh   DOUBLE PRECISION NOT NULL DEFAULT 0,
			location_updated_at TIMESTAMPTZ,

			-- Mutable context blob (weather, battery, external updates)
			context             JSONB,

			CONSTRAINT chk_vehicle_status CHECK (
				status IN ('active', 'inactive', 'maintenance')
			)
		);
	`, "vehicles table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — triggers table
// ─────────────────────────────────────────────────────────────
func step3_triggers_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: triggers table ──────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS triggers (
			id              TEXT        PRIMARY KEY,
			vehicle_id      TEXT        NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
			name            TEXT        NOT NULL,

			-- Must match domain.TriggerType constants
			type            TEXT        NOT NULL,

			-- Typed payload decoded per type; an unknown or malformed
			-- payload loads as a trigger that never fires
			conditions      JSONB       NOT NULL DEFAULT '{}',

			is_active       BOOLEAN     NOT NULL DEFAULT true,

			-- Bumped by the engine inside the tick transaction.
			-- NULL means never fired
			last_triggered  TIMESTAMPTZ,

			CONSTRAINT chk_trigger_type CHECK (
				type IN ('time_based', 'location_based', 'speed_based',
				         'event_based', 'condition_based', 'route_deviation',
				         'performance_based', 'integration_based')
			)
		);
	`, "triggers table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — vehicle_history hypertable
// ─────────────────────────────────────────────────────────────
func step4_history_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: vehicle_history table ───────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS vehicle_history (

			-- Time column — TimescaleDB partitions data by this
			timestamp             TIMESTAMPTZ      NOT NULL,

			id                    TEXT             NOT NULL,
			vehicle_id            TEXT             NOT NULL,
			fleet_id              TEXT             NOT NULL,

			-- Populated only on trigger-caused entries; the baseline
			-- entry written every tick leaves both NULL
			trigger_id            TEXT,
			trigger_type          TEXT,

			-- Position and motion
			latitude              DOUBLE PRECISION NOT NULL,
			longitude             DOUBLE PRECISION NOT NULL,
			heading_deg           DOUBLE PRECISION NOT NULL DEFAULT 0,
			speed_kmh             DOUBLE PRECISION NOT NULL DEFAULT 0,
			avg_speed_kmh         DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_speed_kmh         DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Ambient and vehicle state
			weather               TEXT             NOT NULL DEFAULT 'clear',
			traffic               TEXT             NOT NULL DEFAULT 'light',
			fuel_efficiency_kmpl  DOUBLE PRECISION NOT NULL DEFAULT 0,
			idle_minutes          DOUBLE PRECISION NOT NULL DEFAULT 0,
			stop_duration_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
			battery_pct           DOUBLE PRECISION NOT NULL DEFAULT 0,
			signal_strength       DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Route following
			route_deviation_m     DOUBLE PRECISION NOT NULL DEFAULT 0,
			route_progress_pct    DOUBLE PRECISION NOT NULL DEFAULT 0,
			distance_traveled_km  DOUBLE PRECISION NOT NULL DEFAULT 0,
			simulated_minutes     DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Domain events emitted this tick (JSON array of strings)
			events                JSONB
		);
	`, "vehicle_history table created")

	// Convert to TimescaleDB hypertable
	// History is append-only and queried by recent time range
	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'vehicle_history',
			'timestamp',
			if_not_exists => TRUE
		);
	`, "vehicle_history converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Indexes
// ─────────────────────────────────────────────────────────────
func step5_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_history_vehicle_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_history_vehicle_time
				  ON vehicle_history (vehicle_id, timestamp DESC);`,
			why: "query: history for one vehicle",
		},
		{
			name: "idx_history_fleet_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_history_fleet_time
				  ON vehicle_history (fleet_id, timestamp DESC);`,
			why: "query: all vehicles in a fleet",
		},
		{
			name: "idx_history_trigger",
			sql: `CREATE INDEX IF NOT EXISTS idx_history_trigger
				  ON vehicle_history (trigger_id, timestamp DESC)
				  WHERE trigger_id IS NOT NULL;`,
			why: "query: entries caused by one trigger (partial index)",
		},
		{
			name: "idx_triggers_vehicle",
			sql: `CREATE INDEX IF NOT EXISTS idx_triggers_vehicle
				  ON triggers (vehicle_id) WHERE is_active;`,
			why: "query: active triggers per vehicle (working set load)",
		},
		{
			name: "idx_vehicles_status",
			sql: `CREATE INDEX IF NOT EXISTS idx_vehicles_status
				  ON vehicles (status);`,
			why: "query: active fleet (working set load)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step6_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Verification ────────────────────────")

	tables := []string{"vehicles", "routes", "route_stops", "triggers", "vehicle_history"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'vehicle_history'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("vehicle_history is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('vehicle_history', 'triggers', 'vehicles')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
