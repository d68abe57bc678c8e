package state

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/gaissmai/bart"
)

type NodeKind int

const (
	SwitchNode NodeKind = iota
	HostNode
)

func (k NodeKind) String() string {
	if k == HostNode {
		return "host"
	}
	return "switch"
}

// EdgeId identifies an undirected link. V1 < V2 always holds, so the identity does not depend on
// the order the endpoints were reported in.
type EdgeId Pair[NodeId, NodeId]

func MakeEdgeId(a, b NodeId) EdgeId {
	return EdgeId(MakeSortedPair(a, b))
}

func (e EdgeId) String() string {
	return fmt.Sprintf("%s-%s", e.V1, e.V2)
}

// ParseEdgeId parses an edge written as "a:b"
func ParseEdgeId(s string) (EdgeId, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return EdgeId{}, fmt.Errorf("invalid edge %q, expected <node>:<node>", s)
	}
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if err := NameValidator(a); err != nil {
		return EdgeId{}, err
	}
	if err := NameValidator(b); err != nil {
		return EdgeId{}, err
	}
	return MakeEdgeId(NodeId(a), NodeId(b)), nil
}

func CompareEdges(a, b EdgeId) int {
	return ComparePairs(Pair[NodeId, NodeId](a), Pair[NodeId, NodeId](b))
}

func (l LinkCfg) Other(end NodeId) NodeId {
	if l.A == end {
		return l.B
	}
	return l.A
}

// Adjacency is one direction of a link, as seen from the node that owns it
type Adjacency struct {
	Neighbour NodeId
	Weight    float64
	Port      uint16 // local port towards Neighbour
	Edge      EdgeId
}

// Topology is the validated, immutable description of the network
type Topology struct {
	kinds     map[NodeId]NodeKind
	nodes     []NodeId
	switches  []NodeId
	hosts     []NodeId
	adj       map[NodeId][]Adjacency
	ports     map[NodeId]map[uint16]NodeId
	prefixes  map[NodeId]netip.Prefix
	cpu       map[NodeId]netip.AddrPort
	hostIndex map[NodeId]int
	hostTable *bart.Table[int]
}

// NewTopology expands, validates and indexes cfg. Any error is a configuration error.
func NewTopology(cfg TopologyCfg) (*Topology, error) {
	cfg.Links = slices.Clone(cfg.Links)
	for i := range cfg.Links {
		cfg.Links[i].Ports = slices.Clone(cfg.Links[i].Ports)
	}
	if err := ExpandTopologyConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	if err := TopologyConfigValidator(&cfg); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	t := &Topology{
		kinds:     make(map[NodeId]NodeKind),
		adj:       make(map[NodeId][]Adjacency),
		ports:     make(map[NodeId]map[uint16]NodeId),
		prefixes:  make(map[NodeId]netip.Prefix),
		cpu:       make(map[NodeId]netip.AddrPort),
		hostIndex: make(map[NodeId]int),
		hostTable: &bart.Table[int]{},
	}
	for _, sw := range cfg.Switches {
		t.kinds[sw.Id] = SwitchNode
		t.switches = append(t.switches, sw.Id)
		if sw.Cpu.IsValid() {
			t.cpu[sw.Id] = sw.Cpu
		}
	}
	for _, h := range cfg.Hosts {
		t.kinds[h.Id] = HostNode
		t.hosts = append(t.hosts, h.Id)
		t.prefixes[h.Id] = h.Prefix.Masked()
	}
	slices.Sort(t.switches)
	slices.Sort(t.hosts)
	t.nodes = append(slices.Clone(t.switches), t.hosts...)
	slices.Sort(t.nodes)

	// host indices follow the sorted host list, so they are stable across restarts
	for idx, h := range t.hosts {
		t.hostIndex[h] = idx
		t.hostTable.Insert(t.prefixes[h], idx)
	}

	for _, link := range cfg.Links {
		edge := MakeEdgeId(link.A, link.B)
		t.addAdjacency(link.A, Adjacency{Neighbour: link.B, Weight: *link.Weight, Port: link.Ports[0], Edge: edge})
		t.addAdjacency(link.B, Adjacency{Neighbour: link.A, Weight: *link.Weight, Port: link.Ports[1], Edge: edge})
	}
	for node := range t.adj {
		slices.SortFunc(t.adj[node], func(a, b Adjacency) int {
			return strings.Compare(string(a.Neighbour), string(b.Neighbour))
		})
	}
	return t, nil
}

func (t *Topology) addAdjacency(node NodeId, a Adjacency) {
	t.adj[node] = append(t.adj[node], a)
	if t.ports[node] == nil {
		t.ports[node] = make(map[uint16]NodeId)
	}
	t.ports[node][a.Port] = a.Neighbour
}

// Nodes returns every node, sorted by name
func (t *Topology) Nodes() []NodeId {
	return t.nodes
}

// Switches returns every switch, sorted by name
func (t *Topology) Switches() []NodeId {
	return t.switches
}

// Hosts returns every host, sorted by name. The position of a host is its host index.
func (t *Topology) Hosts() []NodeId {
	return t.hosts
}

// Kind reports whether node is a switch or a host
func (t *Topology) Kind(node NodeId) (NodeKind, bool) {
	k, ok := t.kinds[node]
	return k, ok
}

func (t *Topology) IsSwitch(node NodeId) bool {
	k, ok := t.kinds[node]
	return ok && k == SwitchNode
}

func (t *Topology) IsHost(node NodeId) bool {
	k, ok := t.kinds[node]
	return ok && k == HostNode
}

// Adjacent returns the links of node sorted by neighbour name, including failed ones
func (t *Topology) Adjacent(node NodeId) []Adjacency {
	return t.adj[node]
}

// PortOf returns the port on node that leads to neigh
func (t *Topology) PortOf(node, neigh NodeId) (uint16, bool) {
	for _, a := range t.adj[node] {
		if a.Neighbour == neigh {
			return a.Port, true
		}
	}
	return 0, false
}

// PortToNode returns the node at the other end of port on node
func (t *Topology) PortToNode(node NodeId, port uint16) (NodeId, bool) {
	n, ok := t.ports[node][port]
	return n, ok
}

func (t *Topology) HasEdge(e EdgeId) bool {
	return slices.ContainsFunc(t.adj[e.V1], func(adj Adjacency) bool {
		return adj.Edge == e
	})
}

func (t *Topology) HostPrefix(host NodeId) (netip.Prefix, bool) {
	p, ok := t.prefixes[host]
	return p, ok
}

func (t *Topology) HostIndex(host NodeId) (int, bool) {
	idx, ok := t.hostIndex[host]
	return idx, ok
}

// Gateway returns the first switch a host is attached to
func (t *Topology) Gateway(host NodeId) (NodeId, bool) {
	for _, a := range t.adj[host] {
		if t.IsSwitch(a.Neighbour) {
			return a.Neighbour, true
		}
	}
	return "", false
}

// LookupHost maps a destination address to the host index of the longest matching host prefix
func (t *Topology) LookupHost(addr netip.Addr) (int, bool) {
	return t.hostTable.Lookup(addr)
}

func (t *Topology) CpuAddr(sw NodeId) (netip.AddrPort, bool) {
	addr, ok := t.cpu[sw]
	return addr, ok
}
