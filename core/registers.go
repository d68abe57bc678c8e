package core

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/encodeous/reroute/state"
)

var (
	ErrForwardingLoop = errors.New("forwarding loop")
	ErrNoRoute        = errors.New("no route")
)

// Registers mirrors the primaryNH and alternativeNH registers of a switch, indexed by host index
type Registers struct {
	Primary     map[int]uint16
	Alternative map[int]uint16
}

// RegisterInstaller keeps the forwarding registers of every switch in memory. Together with Trace, it
// behaves like the data plane of the switches.
type RegisterInstaller struct {
	mu       sync.RWMutex
	switches map[state.NodeId]*Registers
	writes   int
}

func NewRegisterInstaller() *RegisterInstaller {
	return &RegisterInstaller{switches: make(map[state.NodeId]*Registers)}
}

func (r *RegisterInstaller) registers(sw state.NodeId) *Registers {
	regs, ok := r.switches[sw]
	if !ok {
		regs = &Registers{Primary: make(map[int]uint16), Alternative: make(map[int]uint16)}
		r.switches[sw] = regs
	}
	return regs
}

func (r *RegisterInstaller) SetPrimaryNextHop(sw state.NodeId, hostIndex int, port uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registers(sw).Primary[hostIndex] = port
	r.writes++
	return nil
}

func (r *RegisterInstaller) SetBackupNextHop(sw state.NodeId, hostIndex int, port uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registers(sw).Alternative[hostIndex] = port
	r.writes++
	return nil
}

// Writes returns the number of register writes received so far
func (r *RegisterInstaller) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

func (r *RegisterInstaller) Read(sw state.NodeId, hostIndex int) (primary, alternative uint16, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs, found := r.switches[sw]
	if !found {
		return 0, 0, false
	}
	primary, ok = regs.Primary[hostIndex]
	alternative = regs.Alternative[hostIndex]
	return primary, alternative, ok
}

// Trace forwards a packet for dst from switch src through the installed registers, the way the switches
// do it: the destination is matched against the host prefixes, and the alternative port is used when the
// link behind the primary port is down. It returns the sequence of nodes visited, ending at the host.
func (r *RegisterInstaller) Trace(topo *state.Topology, src state.NodeId, dst netip.Addr, down state.FailureSet) ([]state.NodeId, error) {
	hostIndex, ok := topo.LookupHost(dst)
	if !ok {
		return nil, fmt.Errorf("%s: %w", dst, ErrNoRoute)
	}
	visited := make(map[state.NodeId]bool)
	hops := []state.NodeId{src}
	cur := src
	for topo.IsSwitch(cur) {
		if visited[cur] {
			return hops, ErrForwardingLoop
		}
		visited[cur] = true
		primary, alternative, ok := r.Read(cur, hostIndex)
		if !ok {
			return hops, fmt.Errorf("%s has no entry for host index %d: %w", cur, hostIndex, ErrNoRoute)
		}
		port := primary
		next, ok := topo.PortToNode(cur, port)
		if ok && down.Contains(state.MakeEdgeId(cur, next)) {
			port = alternative
			next, ok = topo.PortToNode(cur, port)
		}
		if !ok || port == 0 || down.Contains(state.MakeEdgeId(cur, next)) {
			return hops, fmt.Errorf("%s cannot forward to host index %d: %w", cur, hostIndex, ErrNoRoute)
		}
		hops = append(hops, next)
		cur = next
	}
	if idx, _ := topo.HostIndex(cur); idx != hostIndex {
		return hops, fmt.Errorf("delivered to %s instead of host index %d: %w", cur, hostIndex, ErrNoRoute)
	}
	return hops, nil
}
