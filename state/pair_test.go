package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortPairsInt(t *testing.T) {
	pairs := []Pair[int, int]{
		{V1: 3, V2: 10},
		{V1: 1, V2: 20},
		{V1: 1, V2: 5},
		{V1: 2, V2: 15},
	}
	SortPairs(pairs)
	assert.Equal(t, []Pair[int, int]{
		{V1: 1, V2: 5},
		{V1: 1, V2: 20},
		{V1: 2, V2: 15},
		{V1: 3, V2: 10},
	}, pairs)
}

func TestSortPairsString(t *testing.T) {
	pairs := []Pair[NodeId, NodeId]{
		{V1: "b", V2: "y"},
		{V1: "a", V2: "z"},
		{V1: "a", V2: "x"},
		{V1: "c", V2: "w"},
	}
	SortPairs(pairs)
	assert.Equal(t, []Pair[NodeId, NodeId]{
		{V1: "a", V2: "x"},
		{V1: "a", V2: "z"},
		{V1: "b", V2: "y"},
		{V1: "c", V2: "w"},
	}, pairs)
}

func TestMakeSortedPair(t *testing.T) {
	assert.Equal(t, Pair[NodeId, NodeId]{"s1", "s2"}, MakeSortedPair[NodeId]("s2", "s1"))
	assert.Equal(t, Pair[int, int]{1, 1}, MakeSortedPair(1, 1))
}
