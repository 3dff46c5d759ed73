package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/simulation/internal/config"
	"fleet-monitor/simulation/internal/domain"
	"fleet-monitor/simulation/internal/metrics"
	"fleet-monitor/simulation/internal/sim"
	"fleet-monitor/simulation/internal/trigger"
)

type fakeStorage struct {
	mu       sync.Mutex
	vehicles []*domain.Vehicle
	routes   map[string]*domain.Route
	triggers []*domain.Trigger
	err      error
}

func (s *fakeStorage) LoadVehicles(context.Context) ([]*domain.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.vehicles, nil
}

func (s *fakeStorage) LoadRoutes(context.Context) (map[string]*domain.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.routes == nil {
		return map[string]*domain.Route{}, nil
	}
	return s.routes, nil
}

func (s *fakeStorage) LoadTriggers(context.Context) ([]*domain.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.triggers, nil
}

func (s *fakeStorage) set(vehicles []*domain.Vehicle, triggers []*domain.Trigger, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles = vehicles
	s.triggers = triggers
	s.err = err
}

type fakeSampler struct {
	mu        sync.Mutex
	forgotten []string
	speed     float64
}

func (f *fakeSampler) Sample(v *domain.Vehicle, _ *domain.Route, now time.Time) *domain.TelemetrySample {
	return &domain.TelemetrySample{
		Timestamp: now,
		Location:  domain.Location{Lat: 53.35, Lon: -6.26},
		SpeedKmh:  f.speed,
	}
}

func (f *fakeSampler) Forget(vehicleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, vehicleID)
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded map[string]int
	firings  map[string]int
	failFor  string
	panicFor string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{recorded: make(map[string]int), firings: make(map[string]int)}
}

func (r *fakeRecorder) Record(_ context.Context, v *domain.Vehicle, _ *domain.TelemetrySample, firings []trigger.Firing) ([]*domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == r.panicFor {
		panic("recorder blew up")
	}
	if v.ID == r.failFor {
		return nil, errors.New("db unavailable")
	}
	r.recorded[v.ID]++
	r.firings[v.ID] += len(firings)
	return nil, nil
}

func (r *fakeRecorder) count(vehicleID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded[vehicleID]
}

func (r *fakeRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.recorded {
		n += c
	}
	return n
}

func testEngineConfig() *config.Config {
	return &config.Config{
		TickIntervalSec:      3600,
		RefreshIntervalSec:   3600,
		SimWorkers:           4,
		CycleSeconds:         120,
		AssumedTravelSeconds: 1200,
		VariationPct:         10,
		DefaultCooldownSec:   300,
	}
}

func testVehicles(ids ...string) []*domain.Vehicle {
	vs := make([]*domain.Vehicle, 0, len(ids))
	for _, id := range ids {
		vs = append(vs, &domain.Vehicle{ID: id, FleetID: "fleet-1", Status: domain.VehicleActive})
	}
	return vs
}

func newTestEngine(store Storage, sampler Sampler, rec SampleRecorder) *Engine {
	cfg := testEngineConfig()
	return New(cfg, store, sampler, trigger.NewEvaluator(cfg.DefaultCooldown()), rec)
}

func TestInitializeLoadsWorkingSet(t *testing.T) {
	store := &fakeStorage{
		vehicles: testVehicles("v1", "v2"),
		triggers: []*domain.Trigger{
			{ID: "t1", VehicleID: "v1", Type: domain.TriggerSpeedBased, IsActive: true},
			{ID: "t2", VehicleID: "v2", Type: domain.TriggerSpeedBased, IsActive: true},
			{ID: "t3", VehicleID: "v2", Type: domain.TriggerEventBased, IsActive: true},
		},
	}
	e := newTestEngine(store, &fakeSampler{}, newFakeRecorder())

	require.NoError(t, e.Initialize(context.Background()))

	s := e.Status()
	assert.False(t, s.Running)
	assert.Equal(t, 2, s.Vehicles)
	assert.Equal(t, 3, s.Triggers)
	assert.False(t, s.LastRefresh.IsZero())
}

func TestInitializeFailsWhenStorageDown(t *testing.T) {
	store := &fakeStorage{err: errors.New("connection refused")}
	e := newTestEngine(store, &fakeSampler{}, newFakeRecorder())

	assert.Error(t, e.Initialize(context.Background()))
	assert.Nil(t, e.working.Load())
}

func TestPassProcessesEveryVehicleOnce(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1", "v2", "v3")}
	rec := newFakeRecorder()
	e := newTestEngine(store, &fakeSampler{speed: 40}, rec)
	require.NoError(t, e.Initialize(context.Background()))

	e.runPass(context.Background())

	for _, id := range []string{"v1", "v2", "v3"} {
		assert.Equal(t, 1, rec.count(id), "vehicle %s", id)
	}
}

func TestPassEvaluatesTriggersAndDeliversFirings(t *testing.T) {
	high := 30.0
	store := &fakeStorage{
		vehicles: testVehicles("v1"),
		triggers: []*domain.Trigger{{
			ID:         "t-high",
			VehicleID:  "v1",
			Type:       domain.TriggerSpeedBased,
			Conditions: &domain.SpeedConditions{HighKmh: &high},
			IsActive:   true,
		}},
	}
	rec := newFakeRecorder()
	e := newTestEngine(store, &fakeSampler{speed: 80}, rec)
	require.NoError(t, e.Initialize(context.Background()))

	e.runPass(context.Background())

	assert.Equal(t, 1, rec.firings["v1"])
}

func TestPassIsolatesPanickingVehicle(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1", "v2", "v3")}
	rec := newFakeRecorder()
	rec.panicFor = "v2"
	e := newTestEngine(store, &fakeSampler{}, rec)
	require.NoError(t, e.Initialize(context.Background()))

	e.runPass(context.Background())

	assert.Equal(t, 1, rec.count("v1"))
	assert.Equal(t, 0, rec.count("v2"))
	assert.Equal(t, 1, rec.count("v3"))
}

func TestPassContinuesPastRecordFailure(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1", "v2")}
	rec := newFakeRecorder()
	rec.failFor = "v1"
	e := newTestEngine(store, &fakeSampler{}, rec)
	require.NoError(t, e.Initialize(context.Background()))

	e.runPass(context.Background())

	assert.Equal(t, 0, rec.count("v1"))
	assert.Equal(t, 1, rec.count("v2"))

	// the failed vehicle keeps no prior sample, so the dropped tick does not
	// poison the next comparison
	_, ok := e.priors.Load("v1")
	assert.False(t, ok)
	_, ok = e.priors.Load("v2")
	assert.True(t, ok)
}

func TestMissingRouteFallsBackToScenarioReplay(t *testing.T) {
	cfg := testEngineConfig()
	vehicles := testVehicles("v1")
	vehicles[0].AssignedRouteID = "route-deleted"
	store := &fakeStorage{vehicles: vehicles}
	rec := newFakeRecorder()
	e := New(cfg, store, sim.New(cfg, time.Now()), trigger.NewEvaluator(cfg.DefaultCooldown()), rec)
	require.NoError(t, e.Initialize(context.Background()))

	e.runPass(context.Background())

	assert.Equal(t, 1, rec.count("v1"))
}

func TestRefreshKeepsOldSetWhenStorageFails(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1", "v2")}
	e := newTestEngine(store, &fakeSampler{}, newFakeRecorder())
	require.NoError(t, e.Initialize(context.Background()))
	before := e.working.Load()

	store.set(nil, nil, errors.New("connection refused"))
	assert.Error(t, e.refresh(context.Background(), false))

	assert.Same(t, before, e.working.Load())
	assert.Equal(t, 2, e.Status().Vehicles)
}

func TestRefreshSwapsSnapshotWithoutMutatingOldOne(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1", "v2")}
	e := newTestEngine(store, &fakeSampler{}, newFakeRecorder())
	require.NoError(t, e.Initialize(context.Background()))
	old := e.working.Load()

	store.set(testVehicles("v2", "v3"), nil, nil)
	require.NoError(t, e.refresh(context.Background(), false))

	// an in-flight pass holding the old snapshot still sees its full fleet
	require.Len(t, old.Vehicles, 2)
	assert.Equal(t, "v1", old.Vehicles[0].ID)
	assert.Equal(t, "v2", old.Vehicles[1].ID)

	fresh := e.working.Load()
	require.NotSame(t, old, fresh)
	require.Len(t, fresh.Vehicles, 2)
	assert.Equal(t, "v2", fresh.Vehicles[0].ID)
	assert.Equal(t, "v3", fresh.Vehicles[1].ID)
}

func TestRefreshForgetsDepartedVehicles(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1", "v2")}
	sampler := &fakeSampler{}
	e := newTestEngine(store, sampler, newFakeRecorder())
	require.NoError(t, e.Initialize(context.Background()))
	e.runPass(context.Background())

	store.set(testVehicles("v2"), nil, nil)
	require.NoError(t, e.refresh(context.Background(), false))

	assert.Equal(t, []string{"v1"}, sampler.forgotten)
	_, ok := e.priors.Load("v1")
	assert.False(t, ok)
	_, ok = e.priors.Load("v2")
	assert.True(t, ok)
}

type slowRecorder struct {
	*fakeRecorder
	delay time.Duration
}

func (r *slowRecorder) Record(ctx context.Context, v *domain.Vehicle, sample *domain.TelemetrySample, firings []trigger.Firing) ([]*domain.HistoryEntry, error) {
	time.Sleep(r.delay)
	return r.fakeRecorder.Record(ctx, v, sample, firings)
}

func TestOverrunningPassSkipsQueuedTick(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1")}
	rec := &slowRecorder{fakeRecorder: newFakeRecorder(), delay: 1500 * time.Millisecond}

	cfg := testEngineConfig()
	cfg.TickIntervalSec = 1
	e := New(cfg, store, &fakeSampler{}, trigger.NewEvaluator(cfg.DefaultCooldown()), rec)
	require.NoError(t, e.Initialize(context.Background()))

	skippedBefore := metrics.TicksSkipped.Load()
	ranBefore := metrics.TicksRun.Load()

	e.Start()
	defer e.Stop()

	// each pass overruns the 1s interval, so the tick that came due
	// mid-pass is discarded rather than run back-to-back
	assert.Eventually(t, func() bool {
		return metrics.TicksSkipped.Load() > skippedBefore
	}, 10*time.Second, 50*time.Millisecond)

	ran := metrics.TicksRun.Load() - ranBefore
	skipped := metrics.TicksSkipped.Load() - skippedBefore
	assert.GreaterOrEqual(t, skipped, int64(1))
	// every counted pass finished its record; overrunning ticks never stack
	assert.LessOrEqual(t, ran, int64(rec.total()))
}

func TestStartStopIdempotent(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1")}
	e := newTestEngine(store, &fakeSampler{}, newFakeRecorder())
	require.NoError(t, e.Initialize(context.Background()))

	e.Start()
	e.Start()
	assert.True(t, e.Status().Running)

	e.Stop()
	e.Stop()
	assert.False(t, e.Status().Running)
}

func TestTriggerOnceRunsManualPass(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1", "v2")}
	rec := newFakeRecorder()
	e := newTestEngine(store, &fakeSampler{}, rec)
	require.NoError(t, e.Initialize(context.Background()))

	e.Start()
	defer e.Stop()

	e.TriggerOnce()
	assert.Eventually(t, func() bool {
		return rec.total() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefreshRequestPicksUpNewVehicle(t *testing.T) {
	store := &fakeStorage{vehicles: testVehicles("v1")}
	e := newTestEngine(store, &fakeSampler{}, newFakeRecorder())
	require.NoError(t, e.Initialize(context.Background()))

	e.Start()
	defer e.Stop()

	store.set(testVehicles("v1", "v2"), nil, nil)
	e.HandleNewVehicle("v2")

	assert.Eventually(t, func() bool {
		return e.Status().Vehicles == 2
	}, 2*time.Second, 10*time.Millisecond)
}
