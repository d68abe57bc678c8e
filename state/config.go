package state

import (
	"errors"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"
	"time"
)

type NodeId string

// SwitchCfg describes a programmable switch managed by the controller
type SwitchCfg struct {
	Id  NodeId
	Cpu netip.AddrPort `yaml:"cpu,omitempty"` // heartbeat frames mirrored to the cpu port of this switch arrive here
}

// HostCfg describes an end host, which is always a leaf of the topology
type HostCfg struct {
	Id     NodeId
	Prefix netip.Prefix // subnet routed towards this host
}

type LinkCfg struct {
	A      NodeId
	B      NodeId
	Weight *float64 `yaml:"weight,omitempty"`
	Ports  []uint16 `yaml:"ports,omitempty"` // port on A, port on B. 0 is assigned automatically
}

// TopologyCfg is the network-global topology description
type TopologyCfg struct {
	Switches []SwitchCfg
	Hosts    []HostCfg
	Links    []LinkCfg `yaml:",omitempty"`
	Graph    []string  `yaml:",omitempty"` // links declared with the graph syntax, see ParseGraph
}

type DebouncePolicy string

const (
	// DebounceFixed fires the timer once per window, measured from the first new failure
	DebounceFixed DebouncePolicy = "fixed"
	// DebounceTrailing restarts the timer on every new failure
	DebounceTrailing DebouncePolicy = "trailing"
)

type InstallerKind string

const (
	LogInstaller      InstallerKind = "log"
	RegisterInstaller InstallerKind = "registers"
)

// ControllerCfg represents controller-local configuration
type ControllerCfg struct {
	NotificationDelay time.Duration  `yaml:"notification_delay,omitempty"` // delay between the first new failure and recomputation
	DebouncePolicy    DebouncePolicy `yaml:"debounce_policy,omitempty"`
	Workers           int            `yaml:"workers,omitempty"` // size of the shortest path worker pool, 0 uses one worker per cpu
	Installer         InstallerKind  `yaml:"installer,omitempty"`
	InstallDedupTTL   time.Duration  `yaml:"install_dedup_ttl,omitempty"`   // identical register writes are suppressed for this long
	InstallRetryDelay time.Duration  `yaml:"install_retry_delay,omitempty"` // a partially installed plan is written again after this long
	DebugAddr         string         `yaml:"debug_addr,omitempty"`          // if not empty, serves /debug/metrics and /debug/plan
	LogPath           string         `yaml:"log_path,omitempty"`            // if not empty, logs are also written (and rotated) here
}

func (c *ControllerCfg) SetDefaults() {
	if c.NotificationDelay == 0 {
		c.NotificationDelay = NotificationDelay
	}
	if c.DebouncePolicy == "" {
		c.DebouncePolicy = DebounceFixed
	}
	if c.Installer == "" {
		c.Installer = LogInstaller
	}
	if c.InstallDedupTTL == 0 {
		c.InstallDedupTTL = InstallDedupTTL
	}
	if c.InstallRetryDelay == 0 {
		c.InstallRetryDelay = InstallRetryDelay
	}
}

func (c *TopologyCfg) nodeNames() []string {
	names := make([]string, 0, len(c.Switches)+len(c.Hosts))
	for _, sw := range c.Switches {
		names = append(names, string(sw.Id))
	}
	for _, h := range c.Hosts {
		names = append(names, string(h.Id))
	}
	return names
}

// ExpandTopologyConfig turns graph declarations into links, then fills in default weights and ports
func ExpandTopologyConfig(cfg *TopologyCfg) error {
	if len(cfg.Graph) != 0 {
		pairs, err := ParseGraph(cfg.Graph, cfg.nodeNames())
		if err != nil {
			return err
		}
		for _, p := range pairs {
			declared := slices.ContainsFunc(cfg.Links, func(l LinkCfg) bool {
				return MakeSortedPair(l.A, l.B) == p
			})
			if !declared {
				cfg.Links = append(cfg.Links, LinkCfg{A: p.V1, B: p.V2})
			}
		}
		cfg.Graph = nil
	}

	used := make(map[NodeId]map[uint16]bool)
	mark := func(node NodeId, port uint16) {
		if used[node] == nil {
			used[node] = make(map[uint16]bool)
		}
		used[node][port] = true
	}
	for idx, link := range cfg.Links {
		if link.Weight == nil {
			w := DefaultWeight
			link.Weight = &w
		}
		if len(link.Ports) == 0 {
			link.Ports = []uint16{0, 0}
		}
		if len(link.Ports) != 2 {
			return fmt.Errorf("link %s, %s: ports must list exactly two ports, got %v", link.A, link.B, link.Ports)
		}
		if link.Ports[0] != 0 {
			mark(link.A, link.Ports[0])
		}
		if link.Ports[1] != 0 {
			mark(link.B, link.Ports[1])
		}
		cfg.Links[idx] = link
	}

	// assign missing ports in order of sorted neighbour name
	type side struct {
		link  int
		end   int
		neigh NodeId
	}
	missing := make(map[NodeId][]side)
	for idx, link := range cfg.Links {
		if link.Ports[0] == 0 {
			missing[link.A] = append(missing[link.A], side{idx, 0, link.B})
		}
		if link.Ports[1] == 0 {
			missing[link.B] = append(missing[link.B], side{idx, 1, link.A})
		}
	}
	for node, sides := range missing {
		slices.SortFunc(sides, func(a, b side) int {
			return strings.Compare(string(a.neigh), string(b.neigh))
		})
		next := uint16(1)
		for _, s := range sides {
			for used[node][next] {
				next++
			}
			cfg.Links[s.link].Ports[s.end] = next
			mark(node, next)
		}
	}
	return nil
}

func parseSymbolList(s string, validSymbols []string) ([]string, error) {
	spl := strings.Split(strings.TrimSpace(s), ",")
	line := make([]string, 0)
	for _, s := range spl {
		x := strings.TrimSpace(s)
		if x == "" {
			continue
		}
		if !slices.Contains(validSymbols, x) {
			return nil, fmt.Errorf(`%s is not a valid node/group`, x)
		}
		line = append(line, x)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf(`node/group list must not be empty`)
	}
	slices.Sort(line)
	return line, nil
}

/*
ParseGraph Graph syntax is something like this:

	Group1 = s1, s2, s3
	Group2 = s4, s5
	Group1, Group2, s6 // Group1, Group2 and s6 will all be interconnected, but not within Group1 or Group2
	Group1, Group1 // every switch in Group1 is connected to every other switch in Group1
	s8, h8 // s8 and h8 will be connected

nodes is the set of terminal node names the graph evaluates down to
*/
func ParseGraph(graph []string, nodes []string) ([]Pair[NodeId, NodeId], error) {
	symbols := slices.Clone(nodes)
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if !strings.Contains(line, "=") {
			continue
		}
		spl := strings.Split(line, "=")
		if len(spl) != 2 {
			return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
		}
		grp := strings.TrimSpace(spl[0])
		if slices.Contains(nodes, grp) {
			return nil, fmt.Errorf("group name must not be a node name: %s", grp)
		}
		symbols = append(symbols, grp)
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	groups := make(map[string][]string)
	lines := make([][]string, 0)
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if strings.Contains(line, "=") {
			spl := strings.Split(line, "=")
			grp := strings.TrimSpace(spl[0])
			if _, ok := groups[grp]; ok {
				return nil, fmt.Errorf("duplicate group name: %s", grp)
			}
			lst, err := parseSymbolList(spl[1], symbols)
			if err != nil {
				return nil, err
			}
			groups[grp] = lst
			continue
		}
		names, err := parseSymbolList(line, symbols)
		if err != nil {
			return nil, err
		}
		if len(names) < 2 {
			return nil, fmt.Errorf("invalid pairing, %v", names)
		}
		lines = append(lines, names)
	}

	expanded := make(map[string][]string)
	visiting := make(map[string]bool)
	var expand func(sym string) ([]string, error)
	expand = func(sym string) ([]string, error) {
		if slices.Contains(nodes, sym) {
			return []string{sym}, nil
		}
		if exp, ok := expanded[sym]; ok {
			return exp, nil
		}
		if visiting[sym] {
			return nil, errors.New("cycle")
		}
		visiting[sym] = true
		out := make([]string, 0)
		for _, member := range groups[sym] {
			exp, err := expand(member)
			if err != nil {
				return nil, err
			}
			out = append(out, exp...)
		}
		slices.Sort(out)
		out = slices.Compact(out)
		delete(visiting, sym)
		expanded[sym] = out
		return out, nil
	}
	for _, grp := range slices.Sorted(maps.Keys(groups)) {
		if _, err := expand(grp); err != nil {
			cycle := make([]string, 0)
			for name := range visiting {
				cycle = append(cycle, name)
			}
			slices.Sort(cycle)
			return nil, fmt.Errorf("cycle detected in graph: %v", cycle)
		}
	}

	pairings := make([]Pair[NodeId, NodeId], 0)
	resolve := func(sym string) []string {
		if slices.Contains(nodes, sym) {
			return []string{sym}
		}
		return expanded[sym]
	}
	for _, names := range lines {
		for i, a := range names {
			for _, b := range names[i+1:] {
				for _, x := range resolve(a) {
					for _, y := range resolve(b) {
						if x != y {
							pairings = append(pairings, MakeSortedPair(NodeId(x), NodeId(y)))
						}
					}
				}
			}
		}
	}
	SortPairs(pairings)
	return slices.Compact(pairings), nil
}
