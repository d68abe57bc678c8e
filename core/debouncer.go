package core

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/encodeous/reroute/state"
)

type DebounceState int

const (
	// Idle means every known failure has been committed
	Idle DebounceState = iota
	// Collecting means an uncommitted failure exists and the delay timer is running
	Collecting
	// Committing means a recomputation is in progress
	Committing
)

func (s DebounceState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Collecting:
		return "Collecting"
	case Committing:
		return "Committing"
	}
	return fmt.Sprintf("DebounceState(%d)", int(s))
}

// CommitFunc recomputes routes for snapshot. It runs on the timer goroutine and must not call back into
// the debouncer synchronously.
type CommitFunc func(snapshot state.FailureSet)

// FailureDebouncer accumulates link failures and triggers one recomputation per burst of new failures.
// The failure set only grows; a failure that is already known has no effect.
type FailureDebouncer struct {
	mu       sync.Mutex
	state    DebounceState
	failures map[state.EdgeId]struct{}
	dirty    bool // a failure arrived while committing
	delay    time.Duration
	policy   state.DebouncePolicy
	timer    *time.Timer
	timerGen uint64
	commit   CommitFunc
	commits  uint64
	stopped  bool
	inflight sync.WaitGroup
}

func NewFailureDebouncer(delay time.Duration, policy state.DebouncePolicy, commit CommitFunc) *FailureDebouncer {
	if policy == "" {
		policy = state.DebounceFixed
	}
	return &FailureDebouncer{
		state:    Idle,
		failures: make(map[state.EdgeId]struct{}),
		delay:    delay,
		policy:   policy,
		commit:   commit,
	}
}

// NotifyFailure records a failed link. It returns false if the link was already known, in which case
// neither the failure set nor the timer is affected. It never blocks on the recomputation.
func (d *FailureDebouncer) NotifyFailure(edge state.EdgeId) bool {
	edge = state.MakeEdgeId(edge.V1, edge.V2)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	if _, ok := d.failures[edge]; ok {
		return false
	}
	d.failures[edge] = struct{}{}

	switch d.state {
	case Idle:
		d.state = Collecting
		d.startTimer()
	case Collecting:
		if d.policy == state.DebounceTrailing {
			d.startTimer()
		}
	case Committing:
		d.dirty = true
	}
	return true
}

// startTimer (re)arms the delay timer. d.mu must be held.
func (d *FailureDebouncer) startTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timerGen++
	gen := d.timerGen
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
}

func (d *FailureDebouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || d.state != Collecting || gen != d.timerGen {
		// superseded by a restarted timer
		d.mu.Unlock()
		return
	}
	d.state = Committing
	d.dirty = false
	d.timer = nil
	d.commits++
	d.inflight.Add(1)
	snapshot := d.snapshot()
	d.mu.Unlock()

	defer d.inflight.Done()
	d.commit(snapshot)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dirty && !d.stopped {
		d.dirty = false
		d.state = Collecting
		d.startTimer()
	} else {
		d.state = Idle
	}
}

// snapshot copies the failure set. d.mu must be held.
func (d *FailureDebouncer) snapshot() state.FailureSet {
	return state.NewFailureSet(slices.Collect(maps.Keys(d.failures))...)
}

// Snapshot returns every failure recorded so far, committed or not
func (d *FailureDebouncer) Snapshot() state.FailureSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *FailureDebouncer) State() DebounceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Commits returns the number of recomputations triggered so far
func (d *FailureDebouncer) Commits() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// Stop cancels a pending timer and waits for a running recomputation to finish. Failures reported
// afterwards are ignored.
func (d *FailureDebouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.inflight.Wait()
}
