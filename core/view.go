package core

import (
	"iter"

	"github.com/encodeous/reroute/state"
)

// TopologyView is a read-only view over a topology with a set of links excluded
type TopologyView struct {
	base     *state.Topology
	excluded state.FailureSet
}

func NewTopologyView(t *state.Topology) *TopologyView {
	return &TopologyView{base: t, excluded: state.NewFailureSet()}
}

// WithoutEdges derives a view that additionally excludes failed. Edges that are not part of the
// topology are ignored. Neither the base topology nor v is modified.
func (v *TopologyView) WithoutEdges(failed state.FailureSet) *TopologyView {
	return &TopologyView{
		base:     v.base,
		excluded: v.excluded.Union(failed.Edges()...),
	}
}

func (v *TopologyView) Topology() *state.Topology {
	return v.base
}

func (v *TopologyView) Excluded() state.FailureSet {
	return v.excluded
}

func (v *TopologyView) Nodes() []state.NodeId {
	return v.base.Nodes()
}

// Neighbours yields the usable links of node in neighbour name order
func (v *TopologyView) Neighbours(node state.NodeId) iter.Seq[state.Adjacency] {
	return func(yield func(state.Adjacency) bool) {
		for _, adj := range v.base.Adjacent(node) {
			if v.excluded.Contains(adj.Edge) {
				continue
			}
			if !yield(adj) {
				return
			}
		}
	}
}

// SwitchNeighbours returns the switches reachable from node over a single usable link
func (v *TopologyView) SwitchNeighbours(node state.NodeId) []state.NodeId {
	out := make([]state.NodeId, 0)
	for adj := range v.Neighbours(node) {
		if v.base.IsSwitch(adj.Neighbour) {
			out = append(out, adj.Neighbour)
		}
	}
	return out
}

func (v *TopologyView) HasEdge(e state.EdgeId) bool {
	return v.base.HasEdge(e) && !v.excluded.Contains(e)
}
