package core

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/encodeous/reroute/perf"
	"github.com/encodeous/reroute/state"
	"github.com/jellydator/ttlcache/v3"
)

// Installer writes next hop ports into the forwarding registers of a switch. Writing the same value
// twice must have no observable effect.
type Installer interface {
	SetPrimaryNextHop(sw state.NodeId, hostIndex int, port uint16) error
	SetBackupNextHop(sw state.NodeId, hostIndex int, port uint16) error
}

// ApplyPlan installs every assignment of plan. Directly attached hosts only get a primary next hop.
// Write errors do not stop the remaining writes; they are reported to log and returned joined.
func ApplyPlan(topo *state.Topology, plan *RouteUpdatePlan, inst Installer, log RouteLogger) error {
	var errs []error
	fail := func(err error, sw state.NodeId, a NextHopAssignment) {
		log.Log(InstallFailed, "failed to install next hop", "switch", sw, "host", a.Host, "error", err)
		errs = append(errs, fmt.Errorf("install %s on %s: %w", a.Host, sw, err))
	}
	for _, sw := range plan.Switches() {
		for _, a := range plan.Routes[sw] {
			port, ok := topo.PortOf(sw, a.Primary)
			if !ok {
				fail(fmt.Errorf("%s is not a neighbour", a.Primary), sw, a)
				continue
			}
			if err := inst.SetPrimaryNextHop(sw, a.HostIndex, port); err != nil {
				fail(err, sw, a)
				continue
			}
			if a.BackupKind == NoBackup {
				continue
			}
			port, ok = topo.PortOf(sw, a.Backup)
			if !ok {
				fail(fmt.Errorf("%s is not a neighbour", a.Backup), sw, a)
				continue
			}
			if err := inst.SetBackupNextHop(sw, a.HostIndex, port); err != nil {
				fail(err, sw, a)
			}
		}
	}
	return errors.Join(errs...)
}

// LogInstaller only logs register writes, it is used when no switch is attached
type LogInstaller struct {
	Log *slog.Logger
}

func (l LogInstaller) SetPrimaryNextHop(sw state.NodeId, hostIndex int, port uint16) error {
	l.Log.Debug("register_write primaryNH", "switch", sw, "index", hostIndex, "port", port)
	return nil
}

func (l LogInstaller) SetBackupNextHop(sw state.NodeId, hostIndex int, port uint16) error {
	l.Log.Debug("register_write alternativeNH", "switch", sw, "index", hostIndex, "port", port)
	return nil
}

type registerKey struct {
	sw        state.NodeId
	backup    bool
	hostIndex int
}

// DedupInstaller suppresses writes that repeat the value written to the same register within the TTL.
// After the TTL the write is passed through again, which repairs registers reset behind our back.
type DedupInstaller struct {
	Next  Installer
	cache *ttlcache.Cache[registerKey, uint16]
}

func NewDedupInstaller(next Installer, ttl time.Duration) *DedupInstaller {
	return &DedupInstaller{
		Next: next,
		cache: ttlcache.New[registerKey, uint16](
			ttlcache.WithTTL[registerKey, uint16](ttl),
			ttlcache.WithDisableTouchOnHit[registerKey, uint16](),
		),
	}
}

func (d *DedupInstaller) write(key registerKey, port uint16, fn func() error) error {
	if it := d.cache.Get(key); it != nil && !it.IsExpired() && it.Value() == port {
		perf.SuppressedWrites.Add(1)
		return nil
	}
	if err := fn(); err != nil {
		d.cache.Delete(key)
		return err
	}
	perf.RegisterWrites.Add(1)
	d.cache.Set(key, port, ttlcache.DefaultTTL)
	return nil
}

func (d *DedupInstaller) SetPrimaryNextHop(sw state.NodeId, hostIndex int, port uint16) error {
	return d.write(registerKey{sw, false, hostIndex}, port, func() error {
		return d.Next.SetPrimaryNextHop(sw, hostIndex, port)
	})
}

func (d *DedupInstaller) SetBackupNextHop(sw state.NodeId, hostIndex int, port uint16) error {
	return d.write(registerKey{sw, true, hostIndex}, port, func() error {
		return d.Next.SetBackupNextHop(sw, hostIndex, port)
	})
}

// DeleteExpired drops expired entries, it should be called periodically
func (d *DedupInstaller) DeleteExpired() {
	d.cache.DeleteExpired()
}
