package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	TicksRun          atomic.Int64
	TicksSkipped      atomic.Int64
	RefreshesRun      atomic.Int64
	VehiclesProcessed atomic.Int64
	VehicleFaults     atomic.Int64
	TriggersEvaluated atomic.Int64
	TriggersFired     atomic.Int64
	HistoryWritten    atomic.Int64
	DBWriteFailures   atomic.Int64
	RedisFailures     atomic.Int64
	WSClients         atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "simulation_ticks_run_total %d\n", TicksRun.Load())
	fmt.Fprintf(w, "simulation_ticks_skipped_total %d\n", TicksSkipped.Load())
	fmt.Fprintf(w, "simulation_refreshes_total %d\n", RefreshesRun.Load())
	fmt.Fprintf(w, "simulation_vehicles_processed_total %d\n", VehiclesProcessed.Load())
	fmt.Fprintf(w, "simulation_vehicle_faults_total %d\n", VehicleFaults.Load())
	fmt.Fprintf(w, "simulation_triggers_evaluated_total %d\n", TriggersEvaluated.Load())
	fmt.Fprintf(w, "simulation_triggers_fired_total %d\n", TriggersFired.Load())
	fmt.Fprintf(w, "simulation_history_written_total %d\n", HistoryWritten.Load())
	fmt.Fprintf(w, "simulation_db_write_failures_total %d\n", DBWriteFailures.Load())
	fmt.Fprintf(w, "simulation_redis_failures_total %d\n", RedisFailures.Load())
	fmt.Fprintf(w, "simulation_ws_clients %d\n", WSClients.Load())
}
