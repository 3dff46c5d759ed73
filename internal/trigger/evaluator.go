package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"

	"fleet-monitor/simulation/internal/domain"
)

// Trigger lifecycle states. A trigger is armed until it fires, then stays in
// cooldown until its interval elapses.
const (
	StateArmed = "armed"
	StateFired = "fired"

	eventFire  = "fire"
	eventRearm = "rearm"
)

// Firing records one positive trigger evaluation.
type Firing struct {
	Trigger *domain.Trigger
	At      time.Time
}

// Evaluator runs the predicate library over a vehicle's active triggers and
// tracks per-trigger cooldown state machines.
type Evaluator struct {
	defaultCooldown time.Duration

	mu       sync.Mutex
	machines map[string]*fsm.FSM // keyed by trigger id
}

func NewEvaluator(defaultCooldown time.Duration) *Evaluator {
	return &Evaluator{
		defaultCooldown: defaultCooldown,
		machines:        make(map[string]*fsm.FSM),
	}
}

// Evaluate runs every active trigger for the vehicle against the same
// immutable sample. Multiple triggers may fire on one tick; a firing updates
// the trigger's LastTriggered and moves its state machine into cooldown.
// A panicking predicate counts as "does not fire" for that trigger only.
func (e *Evaluator) Evaluate(ctx context.Context, in Input, triggers []*domain.Trigger) []Firing {
	var fired []Firing
	for _, tr := range triggers {
		if !tr.IsActive {
			continue
		}

		m := e.machine(tr, in.Now)
		if m.Current() == StateFired && e.cooldownExpired(tr, in.Now) {
			if err := m.Event(ctx, eventRearm); err != nil {
				continue
			}
		}
		if m.Current() != StateArmed {
			continue
		}

		if !safeMatch(tr, in) {
			continue
		}

		if err := m.Event(ctx, eventFire); err != nil {
			continue
		}
		at := in.Now
		tr.LastTriggered = &at
		fired = append(fired, Firing{Trigger: tr, At: at})
	}
	return fired
}

// Forget drops the state machines for triggers that left the working set.
// Surviving triggers keep their cooldown state across refreshes.
func (e *Evaluator) Forget(triggerIDs map[string]struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.machines {
		if _, keep := triggerIDs[id]; !keep {
			delete(e.machines, id)
		}
	}
}

// machine returns the trigger's state machine, creating it on first sight.
// A trigger loaded from storage still inside its cooldown starts fired so a
// restart cannot double-fire it.
func (e *Evaluator) machine(tr *domain.Trigger, now time.Time) *fsm.FSM {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.machines[tr.ID]; ok {
		return m
	}

	initial := StateArmed
	if tr.LastTriggered != nil && now.Sub(*tr.LastTriggered) < e.cooldownFor(tr) {
		initial = StateFired
	}
	m := fsm.NewFSM(initial, fsm.Events{
		{Name: eventFire, Src: []string{StateArmed}, Dst: StateFired},
		{Name: eventRearm, Src: []string{StateFired}, Dst: StateArmed},
	}, fsm.Callbacks{})
	e.machines[tr.ID] = m
	return m
}

func (e *Evaluator) cooldownExpired(tr *domain.Trigger, now time.Time) bool {
	if tr.LastTriggered == nil {
		return true
	}
	return now.Sub(*tr.LastTriggered) >= e.cooldownFor(tr)
}

// cooldownFor resolves the trigger's cooldown. Time-based triggers carry
// their own interval inside the window config; the shortest configured
// interval wins so a fast window is never gated by a slower sibling.
// Everything else uses the engine default.
func (e *Evaluator) cooldownFor(tr *domain.Trigger) time.Duration {
	if tc, ok := tr.Conditions.(*domain.TimeConditions); ok {
		var shortest time.Duration
		for _, w := range tc.Windows {
			if w.UpdateIntervalMinutes <= 0 {
				continue
			}
			d := time.Duration(w.UpdateIntervalMinutes) * time.Minute
			if shortest == 0 || d < shortest {
				shortest = d
			}
		}
		if shortest > 0 {
			return shortest
		}
	}
	return e.defaultCooldown
}

func safeMatch(tr *domain.Trigger, in Input) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"trigger_id": tr.ID,
				"type":       tr.Type,
				"panic":      r,
			}).Warn("trigger predicate panicked, treating as no match")
			matched = false
		}
	}()
	return Matches(tr, in)
}
