package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/reroute/heartbeat"
	"github.com/encodeous/reroute/perf"
	"github.com/encodeous/reroute/state"
	"github.com/panjf2000/ants/v2"
)

// Controller owns the failure state of the network. It installs a plan for the empty failure set on
// start, then recomputes and reinstalls routes once per debounced burst of link failures.
type Controller struct {
	*state.State
	// Installer receives the register writes, it must be set before Init
	Installer Installer
	Debouncer *FailureDebouncer
	Pool      *ants.Pool
	// Plans publishes every installed *RouteUpdatePlan. Subscribers must drain their channel, a
	// subscriber that falls behind causes later plans to be dropped for everyone.
	Plans broadcast.Broadcaster

	dedup      *DedupInstaller
	retry      *time.Timer
	listener   *heartbeat.Listener
	serveDone  chan struct{}
	plan       atomic.Pointer[RouteUpdatePlan]
	generation atomic.Uint64
}

func (c *Controller) Init(s *state.State) error {
	c.State = s
	if c.Installer == nil {
		c.Installer = LogInstaller{Log: s.Log}
	}
	workers := s.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("failed to create path worker pool: %w", err)
	}
	c.Pool = pool
	c.dedup = NewDedupInstaller(c.Installer, s.InstallDedupTTL)
	c.Plans = broadcast.NewBroadcaster(state.PlanBacklog)
	c.Debouncer = NewFailureDebouncer(s.NotificationDelay, s.DebouncePolicy, c.recompute)

	s.Log.Info("computing initial routes", "switches", len(s.Topology.Switches()), "hosts", len(s.Topology.Hosts()))
	if err := c.install(c.computePlan(state.NewFailureSet())); err != nil {
		return err
	}

	sources := make(map[state.NodeId]netip.AddrPort)
	for _, sw := range s.Topology.Switches() {
		if addr, ok := s.Topology.CpuAddr(sw); ok {
			sources[sw] = addr
		}
	}
	if len(sources) != 0 {
		c.listener, err = heartbeat.Listen(sources, s.Log)
		if err != nil {
			return err
		}
		c.serveDone = make(chan struct{})
		go func() {
			defer close(c.serveDone)
			if err := c.listener.Serve(s.Context, c.HandleFailureEvent); err != nil {
				s.Cancel(fmt.Errorf("heartbeat listener failed: %w", err))
			}
		}()
		s.Log.Info("listening for failure notifications", "switches", len(sources))
	}

	s.RepeatTask(func(s *state.State) error {
		c.dedup.DeleteExpired()
		return nil
	}, s.InstallDedupTTL)
	return nil
}

// HandleFailureEvent resolves the port of a failure notification to a link and records it. It is safe
// to call from any goroutine.
func (c *Controller) HandleFailureEvent(ev state.FailureEvent) {
	if !ev.Failed {
		c.Log(KeepaliveIgnored, "", "switch", ev.Switch, "port", ev.Port)
		return
	}
	neigh, ok := c.Topology.PortToNode(ev.Switch, ev.Port)
	if !ok {
		c.Log(UnknownFailurePort, "failure reported on a port without a link", "switch", ev.Switch, "port", ev.Port)
		return
	}
	c.NotifyFailure(state.MakeEdgeId(ev.Switch, neigh))
}

// NotifyFailure records edge as failed. Links that are already known to be down are ignored.
func (c *Controller) NotifyFailure(edge state.EdgeId) bool {
	perf.FailureNotifications.Add(1)
	if !c.Debouncer.NotifyFailure(edge) {
		perf.DuplicateNotifications.Add(1)
		c.Log(DuplicateFailure, "", "edge", edge)
		return false
	}
	c.Log(FailureRecorded, "", "edge", edge)
	return true
}

func (c *Controller) computePlan(failures state.FailureSet) *RouteUpdatePlan {
	start := time.Now()
	plan := ComputePlan(c.Topology, failures, c.Pool, c)
	plan.Generation = c.generation.Add(1)
	elapsed := time.Since(start)
	perf.RecomputeLatency.Add(float64(elapsed.Microseconds()))
	perf.Recomputations.Add(1)
	if elapsed > state.SlowRecompute {
		c.Env.Log.Warn("route computation took a long time!", "elapsed", elapsed, "failures", failures.Len())
	}
	c.Log(PlanComputed, "", "generation", plan.Generation, "failures", failures, "elapsed", elapsed)
	return plan
}

// recompute is called by the debouncer, the plan is installed on the main loop
func (c *Controller) recompute(snapshot state.FailureSet) {
	plan := c.computePlan(snapshot)
	_, err := c.DispatchWait(func(s *state.State) (any, error) {
		return nil, c.install(plan)
	})
	if err != nil && c.Context.Err() == nil {
		c.Env.Log.Error("failed to install routes", "generation", plan.Generation, "error", err)
	}
}

// install writes plan to the switches, then publishes it. Install errors are logged but do not stop
// the controller; the plan is written again after InstallRetryDelay until it succeeds or is replaced.
func (c *Controller) install(plan *RouteUpdatePlan) error {
	if cur := c.plan.Load(); cur != nil && cur.Generation > plan.Generation {
		return nil
	}
	c.apply(plan)
	c.plan.Store(plan)
	c.Log(PlanInstalled, "", "generation", plan.Generation)
	c.Env.Log.Info("installed routes", "generation", plan.Generation, "failures", plan.Failures)
	if !c.Plans.TrySubmit(plan) {
		c.Env.Log.Warn("plan subscribers are falling behind, plan not published", "generation", plan.Generation)
	}
	return nil
}

// apply must run on the main loop
func (c *Controller) apply(plan *RouteUpdatePlan) {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	err := ApplyPlan(c.Topology, plan, c.dedup, c)
	if err == nil {
		return
	}
	c.Env.Log.Warn("some routes were not installed", "generation", plan.Generation, "error", err, "retry", c.InstallRetryDelay)
	c.retry = c.ScheduleTask(func(s *state.State) error {
		// successful writes are suppressed by the dedup cache
		if c.plan.Load() == plan {
			c.apply(plan)
		}
		return nil
	}, c.InstallRetryDelay)
}

// CurrentPlan returns the last installed plan
func (c *Controller) CurrentPlan() *RouteUpdatePlan {
	return c.plan.Load()
}

func (c *Controller) Subscribe() chan any {
	ch := make(chan any, state.PlanBacklog)
	c.Plans.Register(ch)
	return ch
}

// Unsubscribe stops publishing to ch. Pending plans are discarded.
func (c *Controller) Unsubscribe(ch chan any) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-ch:
			case <-done:
				return
			}
		}
	}()
	c.Plans.Unregister(ch)
}

func (c *Controller) Log(event RouteEvent, desc string, args ...any) {
	level := slog.LevelDebug
	if event.IsWarning() {
		level = slog.LevelWarn
	}
	c.Env.Log.Log(context.Background(), level, fmt.Sprintf("%s %s", event.String(), desc), args...)
}

func (c *Controller) Cleanup(s *state.State) error {
	if c.retry != nil {
		c.retry.Stop()
	}
	if c.listener != nil {
		c.listener.Close()
		<-c.serveDone
	}
	if c.Debouncer != nil {
		c.Debouncer.Stop()
	}
	if c.Pool != nil {
		c.Pool.Release()
	}
	if c.Plans != nil {
		return c.Plans.Close()
	}
	return nil
}
