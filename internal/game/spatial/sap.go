// Package spatial holds broad-phase collision helpers.
package spatial

import (
	"cmp"
	"slices"
)

// Span is a closed interval on the sweep axis
type Span struct {
	Min, Max int64
}

// Around returns the span covering center +/- halfWidth
func Around(center, halfWidth int64) Span {
	return Span{Min: center - halfWidth, Max: center + halfWidth}
}

// Pair holds an index into the first list and an index into the second
type Pair struct {
	A, B int
}

type side uint8

const (
	sideA side = iota
	sideB
)

type endpoint struct {
	value int64
	index int
	side  side
	isMin bool
}

// SweepAndPrune finds overlapping intervals between two lists by sorting
// their endpoints on one axis. Only cross-list pairs are reported, so two
// projectiles of the same role never pair up. Buffers are reused between
// calls; a SweepAndPrune is not safe for concurrent use.
type SweepAndPrune struct {
	endpoints []endpoint
	activeA   []int
	activeB   []int
	pairs     []Pair
}

// NewSweepAndPrune preallocates for roughly capacity intervals
func NewSweepAndPrune(capacity int) *SweepAndPrune {
	return &SweepAndPrune{
		endpoints: make([]endpoint, 0, capacity*2),
		pairs:     make([]Pair, 0, capacity),
	}
}

// Sweep returns every (a, b) pair whose closed spans overlap, touching
// endpoints included. The result is only valid until the next call.
func (s *SweepAndPrune) Sweep(a, b []Span) []Pair {
	s.pairs = s.pairs[:0]
	if len(a) == 0 || len(b) == 0 {
		return s.pairs
	}

	s.endpoints = s.endpoints[:0]
	for i, sp := range a {
		s.endpoints = append(s.endpoints,
			endpoint{sp.Min, i, sideA, true},
			endpoint{sp.Max, i, sideA, false},
		)
	}
	for i, sp := range b {
		s.endpoints = append(s.endpoints,
			endpoint{sp.Min, i, sideB, true},
			endpoint{sp.Max, i, sideB, false},
		)
	}

	// Starts sort before ends at the same value so touching spans pair
	slices.SortFunc(s.endpoints, func(x, y endpoint) int {
		if c := cmp.Compare(x.value, y.value); c != 0 {
			return c
		}
		switch {
		case x.isMin == y.isMin:
			return 0
		case x.isMin:
			return -1
		default:
			return 1
		}
	})

	s.activeA = s.activeA[:0]
	s.activeB = s.activeB[:0]
	for _, ep := range s.endpoints {
		switch {
		case ep.isMin && ep.side == sideA:
			for _, other := range s.activeB {
				s.pairs = append(s.pairs, Pair{A: ep.index, B: other})
			}
			s.activeA = append(s.activeA, ep.index)
		case ep.isMin:
			for _, other := range s.activeA {
				s.pairs = append(s.pairs, Pair{A: other, B: ep.index})
			}
			s.activeB = append(s.activeB, ep.index)
		case ep.side == sideA:
			s.activeA = deactivate(s.activeA, ep.index)
		default:
			s.activeB = deactivate(s.activeB, ep.index)
		}
	}
	return s.pairs
}

// deactivate swaps index out of the active set
func deactivate(active []int, index int) []int {
	for i, id := range active {
		if id == index {
			active[i] = active[len(active)-1]
			return active[:len(active)-1]
		}
	}
	return active
}
