// Package rangeset maintains a normalized set of disjoint, closed
// integer intervals: sorted ascending, pairwise disjoint, and merged
// whenever two intervals overlap or merely abut (differ by one).
package rangeset

import "sort"

// Range is a closed interval [Lo, Hi].
type Range struct {
	Lo, Hi int64
}

// Set is a normalized union of integer ranges.
type Set struct {
	ranges []Range
}

// Add inserts [lo, hi], merging it with every existing range it
// overlaps or abuts. Finding the first affected range is a binary
// search; merging visits the k affected ranges, and splicing in the
// result copies the ranges that follow them.
func (s *Set) Add(lo, hi int64) {
	if hi < lo {
		lo, hi = hi, lo
	}

	// Find the first range that could merge with [lo, hi]: one whose
	// Hi is at least lo-1.
	start := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].Hi >= lo-1
	})

	// Extend [lo, hi] over every subsequent range that still abuts or
	// overlaps it.
	end := start
	for end < len(s.ranges) && s.ranges[end].Lo <= hi+1 {
		if s.ranges[end].Lo < lo {
			lo = s.ranges[end].Lo
		}
		if s.ranges[end].Hi > hi {
			hi = s.ranges[end].Hi
		}
		end++
	}

	merged := Range{lo, hi}
	s.ranges = append(s.ranges[:start], append([]Range{merged}, s.ranges[end:]...)...)
}

// Intervals returns the current ranges in ascending order. The
// returned slice must not be mutated by the caller.
func (s *Set) Intervals() []Range {
	return s.ranges
}

// Len returns the number of disjoint ranges currently held.
func (s *Set) Len() int {
	return len(s.ranges)
}
