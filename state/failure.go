package state

import (
	"maps"
	"slices"
	"strings"
)

// FailureSet is an immutable set of links that are considered down
type FailureSet struct {
	edges map[EdgeId]struct{}
}

func NewFailureSet(edges ...EdgeId) FailureSet {
	f := FailureSet{edges: make(map[EdgeId]struct{}, len(edges))}
	for _, e := range edges {
		f.edges[MakeEdgeId(e.V1, e.V2)] = struct{}{}
	}
	return f
}

func (f FailureSet) Contains(e EdgeId) bool {
	_, ok := f.edges[MakeEdgeId(e.V1, e.V2)]
	return ok
}

func (f FailureSet) Len() int {
	return len(f.edges)
}

// Union returns a new set containing the edges of f and edges
func (f FailureSet) Union(edges ...EdgeId) FailureSet {
	out := FailureSet{edges: maps.Clone(f.edges)}
	if out.edges == nil {
		out.edges = make(map[EdgeId]struct{}, len(edges))
	}
	for _, e := range edges {
		out.edges[MakeEdgeId(e.V1, e.V2)] = struct{}{}
	}
	return out
}

// Edges returns the failed edges in sorted order
func (f FailureSet) Edges() []EdgeId {
	return slices.SortedFunc(maps.Keys(f.edges), CompareEdges)
}

func (f FailureSet) Equal(o FailureSet) bool {
	if f.Len() != o.Len() {
		return false
	}
	for e := range f.edges {
		if !o.Contains(e) {
			return false
		}
	}
	return true
}

func (f FailureSet) String() string {
	edges := f.Edges()
	strs := make([]string, 0, len(edges))
	for _, e := range edges {
		strs = append(strs, e.String())
	}
	return "{" + strings.Join(strs, ", ") + "}"
}

// FailureEvent is a link status notification sent by a switch about one of its ports
type FailureEvent struct {
	Switch NodeId
	Port   uint16
	Failed bool
}
