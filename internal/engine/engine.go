// Package engine drives the simulation: a fixed-interval tick loop, a slower
// working-set refresh, and the control surface the host application uses.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fleet-monitor/simulation/internal/config"
	"fleet-monitor/simulation/internal/domain"
	"fleet-monitor/simulation/internal/metrics"
	"fleet-monitor/simulation/internal/trigger"
)

// Storage is the engine's read side: the working set of vehicles, routes,
// and triggers.
type Storage interface {
	LoadVehicles(ctx context.Context) ([]*domain.Vehicle, error)
	LoadRoutes(ctx context.Context) (map[string]*domain.Route, error)
	LoadTriggers(ctx context.Context) ([]*domain.Trigger, error)
}

// Sampler produces one telemetry sample per vehicle per tick.
type Sampler interface {
	Sample(v *domain.Vehicle, route *domain.Route, now time.Time) *domain.TelemetrySample
	Forget(vehicleID string)
}

// SampleRecorder persists a processed tick for one vehicle.
type SampleRecorder interface {
	Record(ctx context.Context, v *domain.Vehicle, sample *domain.TelemetrySample, firings []trigger.Firing) ([]*domain.HistoryEntry, error)
}

// WorkingSet is an immutable snapshot of the fleet. A refresh builds a new
// one and swaps the pointer; an in-flight pass keeps iterating the snapshot
// it started with.
type WorkingSet struct {
	Vehicles []*domain.Vehicle
	Routes   map[string]*domain.Route
	Triggers map[string][]*domain.Trigger // keyed by vehicle id
	LoadedAt time.Time
}

type Status struct {
	Running       bool      `json:"running"`
	Vehicles      int       `json:"vehicles"`
	Triggers      int       `json:"triggers"`
	LastTick      time.Time `json:"last_tick,omitempty"`
	LastRefresh   time.Time `json:"last_refresh,omitempty"`
	TicksRun      int64     `json:"ticks_run"`
	TriggersFired int64     `json:"triggers_fired"`
}

type Engine struct {
	cfg   *config.Config
	store Storage
	sim   Sampler
	eval  *trigger.Evaluator
	rec   SampleRecorder

	working  atomic.Pointer[WorkingSet]
	priors   sync.Map // vehicle id -> *domain.TelemetrySample
	lastTick atomic.Pointer[time.Time]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	tickNow    chan struct{}
	refreshNow chan struct{}
}

func New(cfg *config.Config, store Storage, sim Sampler, eval *trigger.Evaluator, rec SampleRecorder) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      store,
		sim:        sim,
		eval:       eval,
		rec:        rec,
		tickNow:    make(chan struct{}, 1),
		refreshNow: make(chan struct{}, 1),
	}
}

// Initialize loads the first working set. The engine will not start without
// one; later refresh failures only keep the previous set.
func (e *Engine) Initialize(ctx context.Context) error {
	return e.refresh(ctx, true)
}

// Start launches the scheduler loop. Idempotent: starting a running engine
// is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	go e.run(ctx)
	log.WithFields(log.Fields{
		"tick_interval":    e.cfg.TickInterval(),
		"refresh_interval": e.cfg.RefreshInterval(),
	}).Info("Simulation engine started")
}

// Stop cancels the loop and waits for it to drain. Idempotent; a pass in
// flight finishes first, so stopping takes effect at the tick boundary.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	log.Info("Simulation engine stopped")
}

// TriggerOnce requests a manual pass at the next loop iteration. Safe to
// call concurrently with the scheduler; duplicate requests collapse.
func (e *Engine) TriggerOnce() {
	select {
	case e.tickNow <- struct{}{}:
	default:
	}
}

// Refresh requests a working-set reload between ticks.
func (e *Engine) Refresh() {
	select {
	case e.refreshNow <- struct{}{}:
	default:
	}
}

// HandleNewVehicle schedules the vehicle to join the working set at the next
// refresh boundary.
func (e *Engine) HandleNewVehicle(id string) {
	log.WithField("vehicle_id", id).Info("New vehicle announced, scheduling refresh")
	e.Refresh()
}

// HandleNewRoute schedules a reload so route reassignments take effect.
func (e *Engine) HandleNewRoute(id string) {
	log.WithField("route_id", id).Info("New route announced, scheduling refresh")
	e.Refresh()
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	s := Status{
		Running:       running,
		TicksRun:      metrics.TicksRun.Load(),
		TriggersFired: metrics.TriggersFired.Load(),
	}
	if ws := e.working.Load(); ws != nil {
		s.Vehicles = len(ws.Vehicles)
		s.LastRefresh = ws.LoadedAt
		for _, trs := range ws.Triggers {
			s.Triggers += len(trs)
		}
	}
	if t := e.lastTick.Load(); t != nil {
		s.LastTick = *t
	}
	return s
}

// run is the scheduler loop. Ticks and refreshes share this goroutine, so a
// refresh can never interleave with an in-flight pass.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	tick := time.NewTicker(e.cfg.TickInterval())
	defer tick.Stop()
	refresh := time.NewTicker(e.cfg.RefreshInterval())
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			e.runPass(ctx)
			// a tick that came due while the pass ran is skipped, not queued
			select {
			case <-tick.C:
				metrics.TicksSkipped.Add(1)
				log.Warn("Tick overran its interval, skipping the queued tick")
			default:
			}
		case <-e.tickNow:
			e.runPass(ctx)
		case <-refresh.C:
			if err := e.refresh(ctx, false); err != nil {
				log.Errorf("Working set refresh failed, keeping previous set: %v", err)
			}
		case <-e.refreshNow:
			if err := e.refresh(ctx, false); err != nil {
				log.Errorf("Working set refresh failed, keeping previous set: %v", err)
			}
		}
	}
}

// runPass processes every vehicle in the current snapshot with a bounded
// worker pool. Vehicle faults are isolated; the pass always completes.
func (e *Engine) runPass(ctx context.Context) {
	ws := e.working.Load()
	if ws == nil {
		log.Warn("No working set loaded, skipping tick")
		metrics.TicksSkipped.Add(1)
		return
	}

	now := time.Now()

	var g errgroup.Group
	g.SetLimit(e.cfg.SimWorkers)
	for _, v := range ws.Vehicles {
		v := v
		g.Go(func() error {
			e.processVehicle(ctx, ws, v, now)
			return nil
		})
	}
	g.Wait()

	metrics.TicksRun.Add(1)
	e.lastTick.Store(&now)
	log.WithFields(log.Fields{
		"vehicles": len(ws.Vehicles),
		"elapsed":  time.Since(now),
	}).Debug("Simulation pass complete")
}

func (e *Engine) processVehicle(ctx context.Context, ws *WorkingSet, v *domain.Vehicle, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			metrics.VehicleFaults.Add(1)
			log.WithField("vehicle_id", v.ID).Errorf("Vehicle processing panicked: %v", r)
		}
	}()

	// a missing or malformed route falls back to scenario replay inside the
	// simulator rather than failing the vehicle
	route := ws.Routes[v.AssignedRouteID]
	sample := e.sim.Sample(v, route, now)

	var prior *domain.TelemetrySample
	if p, ok := e.priors.Load(v.ID); ok {
		prior = p.(*domain.TelemetrySample)
	}

	triggers := ws.Triggers[v.ID]
	metrics.TriggersEvaluated.Add(int64(len(triggers)))

	firings := e.eval.Evaluate(ctx, trigger.Input{
		Current: sample,
		Prior:   prior,
		Vehicle: v,
		Now:     now,
	}, triggers)
	metrics.TriggersFired.Add(int64(len(firings)))

	if _, err := e.rec.Record(ctx, v, sample, firings); err != nil {
		metrics.VehicleFaults.Add(1)
		log.WithField("vehicle_id", v.ID).Errorf("Recording tick failed: %v", err)
		return
	}

	e.priors.Store(v.ID, sample)
	metrics.VehiclesProcessed.Add(1)
}

// refresh builds a new immutable working set and swaps it in. In-memory
// state for vehicles and triggers that survived the reload is kept; state
// for departed ones is dropped.
func (e *Engine) refresh(ctx context.Context, initial bool) error {
	vehicles, err := e.store.LoadVehicles(ctx)
	if err != nil {
		return err
	}
	routes, err := e.store.LoadRoutes(ctx)
	if err != nil {
		return err
	}
	triggers, err := e.store.LoadTriggers(ctx)
	if err != nil {
		return err
	}

	byVehicle := make(map[string][]*domain.Trigger)
	keep := make(map[string]struct{}, len(triggers))
	for _, tr := range triggers {
		byVehicle[tr.VehicleID] = append(byVehicle[tr.VehicleID], tr)
		keep[tr.ID] = struct{}{}
	}

	ws := &WorkingSet{
		Vehicles: vehicles,
		Routes:   routes,
		Triggers: byVehicle,
		LoadedAt: time.Now(),
	}

	old := e.working.Swap(ws)
	e.eval.Forget(keep)
	if old != nil {
		current := make(map[string]struct{}, len(vehicles))
		for _, v := range vehicles {
			current[v.ID] = struct{}{}
		}
		for _, v := range old.Vehicles {
			if _, ok := current[v.ID]; !ok {
				e.sim.Forget(v.ID)
				e.priors.Delete(v.ID)
			}
		}
	}

	metrics.RefreshesRun.Add(1)
	if !initial {
		log.WithFields(log.Fields{
			"vehicles": len(vehicles),
			"routes":   len(routes),
			"triggers": len(triggers),
		}).Info("Working set refreshed")
	}
	return nil
}
