package state

import (
	"cmp"
	"slices"
)

type Pair[Ty1, Ty2 any] struct {
	V1 Ty1
	V2 Ty2
}

func MakeSortedPair[T cmp.Ordered](a, b T) Pair[T, T] {
	if a < b {
		return Pair[T, T]{a, b}
	} else {
		return Pair[T, T]{b, a}
	}
}

func ComparePairs[T cmp.Ordered](a, b Pair[T, T]) int {
	if c := cmp.Compare(a.V1, b.V1); c != 0 {
		return c
	}
	return cmp.Compare(a.V2, b.V2)
}

func SortPairs[T cmp.Ordered](pairs []Pair[T, T]) {
	slices.SortFunc(pairs, ComparePairs[T])
}
