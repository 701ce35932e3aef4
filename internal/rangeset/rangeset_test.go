package rangeset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddMergesOverlapAndAbut(t *testing.T) {
	var s Set
	s.Add(1, 4)
	s.Add(10, 12)
	s.Add(5, 7)

	require.Equal(t, []Range{{1, 7}, {10, 12}}, s.Intervals())

	// 8 abuts 7 but not 10 (gap at 9), so only the first run grows.
	s.Add(8, 8)
	require.Equal(t, []Range{{1, 8}, {10, 12}}, s.Intervals())

	s.Add(9, 9)
	require.Equal(t, []Range{{1, 12}}, s.Intervals())
}

func TestAddDisjoint(t *testing.T) {
	var s Set
	s.Add(100, 200)
	s.Add(0, 10)
	s.Add(300, 400)

	require.Equal(t, []Range{{0, 10}, {100, 200}, {300, 400}}, s.Intervals())
}

func TestAddSingletonGapIsNotMerged(t *testing.T) {
	var s Set
	s.Add(1, 4)
	s.Add(6, 9) // gap of one integer (5): not adjacent, must stay separate
	require.Equal(t, []Range{{1, 4}, {6, 9}}, s.Intervals())
}

func TestAddSwappedBounds(t *testing.T) {
	var s Set
	s.Add(10, 5)
	require.Equal(t, []Range{{5, 10}}, s.Intervals())
}

func TestAddFullyContained(t *testing.T) {
	var s Set
	s.Add(0, 100)
	s.Add(40, 50)
	require.Equal(t, []Range{{0, 100}}, s.Intervals())
}
