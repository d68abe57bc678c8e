package core

import (
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"testing"

	"github.com/encodeous/reroute/state"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// ants starts its default pool when the package is loaded
var leakOptions = []goleak.Option{
	goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
	goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
}

type loggedEvent struct {
	Event RouteEvent
	Desc  string
	Args  []any
}

// recordingLogger keeps every route event it receives
type recordingLogger struct {
	mu     sync.Mutex
	events []loggedEvent
}

func (r *recordingLogger) Log(event RouteEvent, desc string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, loggedEvent{event, desc, args})
}

func (r *recordingLogger) Count(event RouteEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func weight(w float64) *float64 {
	return &w
}

// hostsFor attaches host hN to every switch sN
func hostsFor(switches ...state.NodeId) ([]state.HostCfg, []string) {
	hosts := make([]state.HostCfg, 0, len(switches))
	graph := make([]string, 0, len(switches))
	for idx, sw := range switches {
		h := state.NodeId("h" + string(sw[1:]))
		hosts = append(hosts, state.HostCfg{
			Id:     h,
			Prefix: netip.MustParsePrefix(fmt.Sprintf("10.0.%d.1/24", idx+1)),
		})
		graph = append(graph, fmt.Sprintf("%s, %s", sw, h))
	}
	return hosts, graph
}

func switchCfgs(switches ...state.NodeId) []state.SwitchCfg {
	out := make([]state.SwitchCfg, 0, len(switches))
	for _, sw := range switches {
		out = append(out, state.SwitchCfg{Id: sw})
	}
	return out
}

func buildTopology(t *testing.T, cfg state.TopologyCfg) *state.Topology {
	t.Helper()
	topo, err := state.NewTopology(cfg)
	require.NoError(t, err)
	return topo
}

// ringCfg is a triangle s1, s2, s3 with host hN on sN
func ringCfg() state.TopologyCfg {
	hosts, graph := hostsFor("s1", "s2", "s3")
	return state.TopologyCfg{
		Switches: switchCfgs("s1", "s2", "s3"),
		Hosts:    hosts,
		Graph:    append(graph, "ring = s1, s2, s3", "ring, ring"),
	}
}

// meshCfg is a full mesh of four switches with host hN on sN
func meshCfg() state.TopologyCfg {
	hosts, graph := hostsFor("s1", "s2", "s3", "s4")
	return state.TopologyCfg{
		Switches: switchCfgs("s1", "s2", "s3", "s4"),
		Hosts:    hosts,
		Graph:    append(graph, "mesh = s1, s2, s3, s4", "mesh, mesh"),
	}
}

// lineCfg is s1 - s2 - s3 with hosts on both ends
func lineCfg() state.TopologyCfg {
	return state.TopologyCfg{
		Switches: switchCfgs("s1", "s2", "s3"),
		Hosts: []state.HostCfg{
			{Id: "h1", Prefix: netip.MustParsePrefix("10.0.1.1/24")},
			{Id: "h3", Prefix: netip.MustParsePrefix("10.0.3.1/24")},
		},
		Graph: []string{"s1, s2", "s2, s3", "s1, h1", "s3, h3"},
	}
}

// fanCfg has s1 connected to s2, s3 and s4, which all lead to h5 on s5 at different costs
func fanCfg() state.TopologyCfg {
	return state.TopologyCfg{
		Switches: switchCfgs("s1", "s2", "s3", "s4", "s5"),
		Hosts:    []state.HostCfg{{Id: "h5", Prefix: netip.MustParsePrefix("10.0.5.1/24")}},
		Links: []state.LinkCfg{
			{A: "s2", B: "s5", Weight: weight(1)},
			{A: "s3", B: "s5", Weight: weight(2.5)},
			{A: "s4", B: "s5", Weight: weight(2)},
		},
		Graph: []string{"s1, s2", "s1, s3", "s1, s4", "s5, h5"},
	}
}

// spurCfg has s1 connected to s2, s3 and s4 with h4 on s4. s2 is a dead end, so only s3 can protect
// the s1-s4 link even though s2 comes first.
func spurCfg() state.TopologyCfg {
	return state.TopologyCfg{
		Switches: switchCfgs("s1", "s2", "s3", "s4"),
		Hosts:    []state.HostCfg{{Id: "h4", Prefix: netip.MustParsePrefix("10.0.4.1/24")}},
		Graph:    []string{"s1, s2", "s1, s3", "s1, s4", "s3, s4", "s4, h4"},
	}
}

func edge(a, b state.NodeId) state.EdgeId {
	return state.MakeEdgeId(a, b)
}

// pathEdges returns the links a path traverses
func pathEdges(path []state.NodeId) []state.EdgeId {
	out := make([]state.EdgeId, 0, len(path))
	for i := 1; i < len(path); i++ {
		out = append(out, edge(path[i-1], path[i]))
	}
	return out
}

func usesEdge(path []state.NodeId, e state.EdgeId) bool {
	return slices.Contains(pathEdges(path), e)
}
