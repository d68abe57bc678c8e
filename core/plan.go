package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/encodeous/reroute/state"
	"github.com/panjf2000/ants/v2"
)

type BackupKind int

const (
	// NoBackup is used for directly attached hosts
	NoBackup BackupKind = iota
	// LoopFreeBackup is a loop-free alternate
	LoopFreeBackup
	// PrimaryFallback means no loop-free alternate exists, so the backup repeats the primary
	PrimaryFallback
)

func (k BackupKind) String() string {
	switch k {
	case NoBackup:
		return "none"
	case LoopFreeBackup:
		return "lfa"
	case PrimaryFallback:
		return "fallback"
	}
	return fmt.Sprintf("BackupKind(%d)", int(k))
}

type NextHopAssignment struct {
	Host       state.NodeId
	HostIndex  int
	Primary    state.NodeId
	Backup     state.NodeId // empty when BackupKind is NoBackup
	BackupKind BackupKind
	Distance   float64
}

func (a NextHopAssignment) Terminal() bool {
	return a.Primary == a.Host
}

func (a NextHopAssignment) String() string {
	if a.BackupKind == NoBackup {
		return fmt.Sprintf("%s[%d] via %s (d: %g)", a.Host, a.HostIndex, a.Primary, a.Distance)
	}
	return fmt.Sprintf("%s[%d] via %s backup %s (%s, d: %g)", a.Host, a.HostIndex, a.Primary, a.Backup, a.BackupKind, a.Distance)
}

// RouteUpdatePlan is the desired forwarding state of every switch for one failure set. A plan is never
// modified after it is built; a newer plan supersedes it.
type RouteUpdatePlan struct {
	Generation uint64
	Failures   state.FailureSet
	// Routes holds the assignments of each switch, ordered by host index
	Routes map[state.NodeId][]NextHopAssignment
}

func (p *RouteUpdatePlan) Switches() []state.NodeId {
	return slices.Sorted(maps.Keys(p.Routes))
}

func (p *RouteUpdatePlan) Lookup(sw, host state.NodeId) (NextHopAssignment, bool) {
	idx := slices.IndexFunc(p.Routes[sw], func(a NextHopAssignment) bool {
		return a.Host == host
	})
	if idx == -1 {
		return NextHopAssignment{}, false
	}
	return p.Routes[sw][idx], true
}

func (p *RouteUpdatePlan) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("generation %d, failures %s\n", p.Generation, p.Failures))
	for _, sw := range p.Switches() {
		sb.WriteString(fmt.Sprintf("%s:\n", sw))
		if len(p.Routes[sw]) == 0 {
			sb.WriteString("  (none)\n")
		}
		for _, a := range p.Routes[sw] {
			sb.WriteString(fmt.Sprintf("  %s\n", a))
		}
	}
	return sb.String()
}

// BuildPlan combines the primary next hops and alternates into a plan. Switches that have no
// alternate for a host fall back to their primary next hop, which is reported to log.
func BuildPlan(v *TopologyView, nextHops NextHops, lfas LFAs, d *DistanceTable, log RouteLogger) *RouteUpdatePlan {
	topo := v.Topology()
	plan := &RouteUpdatePlan{
		Failures: v.Excluded(),
		Routes:   make(map[state.NodeId][]NextHopAssignment, len(topo.Switches())),
	}
	for _, sw := range topo.Switches() {
		routes := make([]NextHopAssignment, 0, len(topo.Hosts()))
		for _, host := range topo.Hosts() {
			nh, ok := nextHops[sw][host]
			if !ok {
				continue
			}
			idx, _ := topo.HostIndex(host)
			dist, _ := d.Distance(sw, host)
			a := NextHopAssignment{
				Host:      host,
				HostIndex: idx,
				Primary:   nh.Node,
				Distance:  dist,
			}
			if !nh.Terminal {
				if alt, ok := lfas[sw][host]; ok {
					a.Backup, a.BackupKind = alt, LoopFreeBackup
				} else {
					log.Log(NoLoopFreeAlternate, "no LFA, falling back to the primary next hop", "switch", sw, "host", host, "nh", nh.Node)
					a.Backup, a.BackupKind = nh.Node, PrimaryFallback
				}
			}
			routes = append(routes, a)
		}
		plan.Routes[sw] = routes
	}
	return plan
}

// ComputePlan runs the whole pipeline for topo with failures excluded
func ComputePlan(topo *state.Topology, failures state.FailureSet, pool *ants.Pool, log RouteLogger) *RouteUpdatePlan {
	if log == nil {
		log = discardLogger{}
	}
	v := NewTopologyView(topo).WithoutEdges(failures)
	d, p := ComputeAllPairs(v, pool)
	nextHops := ComputeNextHops(v, p, log)
	lfas := ComputeLFAs(v, nextHops, d)
	return BuildPlan(v, nextHops, lfas, d, log)
}
