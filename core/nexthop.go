package core

import "github.com/encodeous/reroute/state"

// NextHop is the node a switch forwards to for a destination host
type NextHop struct {
	Node state.NodeId
	// Terminal is set when Node is the destination host itself. There is nothing left to protect
	// in that case, as the only way to the host is the access link.
	Terminal bool
}

// NextHops maps switch -> host -> primary next hop
type NextHops map[state.NodeId]map[state.NodeId]NextHop

// ResolvePrimary returns the first hop on the path from sw to host, or false if host is unreachable
func ResolvePrimary(sw, host state.NodeId, paths *PathTable) (NextHop, bool) {
	path, ok := paths.Path(sw, host)
	if !ok || len(path) < 2 {
		return NextHop{}, false
	}
	// path[0] is the switch itself
	nh := path[1]
	return NextHop{Node: nh, Terminal: nh == host}, true
}

// ComputeNextHops resolves the primary next hop of every switch towards every host. Unreachable
// pairs are reported to log and left out.
func ComputeNextHops(v *TopologyView, paths *PathTable, log RouteLogger) NextHops {
	topo := v.Topology()
	out := make(NextHops, len(topo.Switches()))
	for _, sw := range topo.Switches() {
		out[sw] = make(map[state.NodeId]NextHop, len(topo.Hosts()))
		for _, host := range topo.Hosts() {
			nh, ok := ResolvePrimary(sw, host, paths)
			if !ok {
				log.Log(Unreachable, "the graph is not connected", "switch", sw, "host", host)
				continue
			}
			out[sw][host] = nh
		}
	}
	return out
}
