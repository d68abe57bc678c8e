package state

import (
	"fmt"
	"math"
	"net"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	_, _, err := net.SplitHostPort(s)
	return err
}

func WeightValidator(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("weight %v is not a finite number", w)
	}
	if w < 0 {
		return fmt.Errorf("weight %v is negative", w)
	}
	return nil
}

// TopologyConfigValidator must be called after ExpandTopologyConfig
func TopologyConfigValidator(cfg *TopologyCfg) error {
	if len(cfg.Switches) == 0 {
		return fmt.Errorf("topology has no switches")
	}
	kinds := make(map[NodeId]NodeKind)
	for _, sw := range cfg.Switches {
		if err := NameValidator(string(sw.Id)); err != nil {
			return err
		}
		if _, ok := kinds[sw.Id]; ok {
			return fmt.Errorf("duplicate node: %s", sw.Id)
		}
		kinds[sw.Id] = SwitchNode
	}
	for _, h := range cfg.Hosts {
		if err := NameValidator(string(h.Id)); err != nil {
			return err
		}
		if _, ok := kinds[h.Id]; ok {
			return fmt.Errorf("duplicate node: %s", h.Id)
		}
		if !h.Prefix.IsValid() {
			return fmt.Errorf("host %s has an invalid prefix", h.Id)
		}
		kinds[h.Id] = HostNode
	}

	edges := make([]EdgeId, 0, len(cfg.Links))
	ports := make(map[Pair[NodeId, uint16]]NodeId)
	gateways := make(map[NodeId]int)
	for _, link := range cfg.Links {
		for _, end := range []NodeId{link.A, link.B} {
			if _, ok := kinds[end]; !ok {
				return fmt.Errorf("node %s not defined", end)
			}
		}
		if link.A == link.B {
			return fmt.Errorf("self loop on node %s", link.A)
		}
		edge := MakeEdgeId(link.A, link.B)
		if slices.Contains(edges, edge) {
			return fmt.Errorf("duplicate edge found: %s, %s", edge.V1, edge.V2)
		}
		edges = append(edges, edge)
		if link.Weight == nil {
			return fmt.Errorf("link %s has no weight", edge)
		}
		if err := WeightValidator(*link.Weight); err != nil {
			return fmt.Errorf("link %s: %w", edge, err)
		}
		if len(link.Ports) != 2 {
			return fmt.Errorf("link %s must have two ports", edge)
		}
		for i, end := range []NodeId{link.A, link.B} {
			port := link.Ports[i]
			if port == 0 || port > MaxPort {
				return fmt.Errorf("link %s: port %d on %s is out of range", edge, port, end)
			}
			key := Pair[NodeId, uint16]{end, port}
			if other, ok := ports[key]; ok {
				return fmt.Errorf("port %d on %s is used by links to both %s and %s", port, end, other, link.Other(end))
			}
			ports[key] = link.Other(end)
		}
		if kinds[link.A] == HostNode && kinds[link.B] == HostNode {
			return fmt.Errorf("link %s connects two hosts", edge)
		}
		if kinds[link.A] == HostNode {
			gateways[link.A]++
		}
		if kinds[link.B] == HostNode {
			gateways[link.B]++
		}
	}
	for _, h := range cfg.Hosts {
		if gateways[h.Id] == 0 {
			return fmt.Errorf("host %s is not connected to any switch", h.Id)
		}
	}
	return nil
}

func ControllerConfigValidator(cfg *ControllerCfg) error {
	if cfg.NotificationDelay < 0 {
		return fmt.Errorf("notification_delay must not be negative")
	}
	if cfg.InstallRetryDelay < 0 {
		return fmt.Errorf("install_retry_delay must not be negative")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	switch cfg.DebouncePolicy {
	case DebounceFixed, DebounceTrailing:
	default:
		return fmt.Errorf("unknown debounce_policy %q", cfg.DebouncePolicy)
	}
	switch cfg.Installer {
	case LogInstaller, RegisterInstaller:
	default:
		return fmt.Errorf("unknown installer %q", cfg.Installer)
	}
	if cfg.DebugAddr != "" {
		if err := BindValidator(cfg.DebugAddr); err != nil {
			return fmt.Errorf("debug_addr: %w", err)
		}
	}
	return nil
}
