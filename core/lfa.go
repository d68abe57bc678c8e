package core

import (
	"slices"

	"github.com/encodeous/reroute/state"
)

// LFAs maps switch -> host -> loop-free alternate next hop. Pairs without an alternate are absent.
type LFAs map[state.NodeId]map[state.NodeId]state.NodeId

// IsLoopFree reports whether traffic from sw towards host, handed to alt, will not come back through
// sw: D(alt, host) < D(alt, sw) + D(sw, host)
func IsLoopFree(d *DistanceTable, sw, alt, host state.NodeId) bool {
	altHost, ok1 := d.Distance(alt, host)
	altSw, ok2 := d.Distance(alt, sw)
	swHost, ok3 := d.Distance(sw, host)
	if !ok1 || !ok2 || !ok3 {
		return false
	}
	return altHost < altSw+swHost
}

// FindLFA selects, among the switch neighbours of sw other than primary, the loop-free alternate with
// the lowest D(sw, alt) + D(alt, host). Every candidate is considered, in name order; ties keep the first.
func FindLFA(v *TopologyView, d *DistanceTable, sw, host, primary state.NodeId) (state.NodeId, bool) {
	candidates := v.SwitchNeighbours(sw)
	slices.Sort(candidates)

	var best state.NodeId
	bestCost := 0.0
	found := false
	for _, alt := range candidates {
		if alt == primary || !IsLoopFree(d, sw, alt, host) {
			continue
		}
		swAlt, ok1 := d.Distance(sw, alt)
		altHost, ok2 := d.Distance(alt, host)
		if !ok1 || !ok2 {
			continue
		}
		if cost := swAlt + altHost; !found || cost < bestCost {
			best, bestCost, found = alt, cost, true
		}
	}
	return best, found
}

// ComputeLFAs finds a loop-free alternate for every non-terminal next hop
func ComputeLFAs(v *TopologyView, nextHops NextHops, d *DistanceTable) LFAs {
	out := make(LFAs, len(nextHops))
	for sw, dests := range nextHops {
		out[sw] = make(map[state.NodeId]state.NodeId)
		for host, nh := range dests {
			if nh.Terminal {
				continue // nothing can be done if the host link fails
			}
			if alt, ok := FindLFA(v, d, sw, host, nh.Node); ok {
				out[sw][host] = alt
			}
		}
	}
	return out
}
