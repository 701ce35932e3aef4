package generator

import (
	"math"
	"testing"

	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/stretchr/testify/require"
)

func valueSetContainsUint(t *testing.T, vals []memtrace.Value, want uint64) bool {
	t.Helper()
	for _, v := range vals {
		if v.Uint == want {
			return true
		}
	}
	return false
}

// TestGenerateUint32MutationalScenario mirrors scenario 5: code "I",
// original 100, mutate_range=3.
func TestGenerateUint32MutationalScenario(t *testing.T) {
	cfg := Config{Mutational: true, MutateRange: 3}
	orig := memtrace.UintValue(memtrace.KindUint32, 100)

	vals, err := Generate(cfg, "I", orig)
	require.NoError(t, err)

	for _, want := range []uint64{97, 98, 99, 101, 102, 103, 50, 25, 200, 400} {
		require.Truef(t, valueSetContainsUint(t, vals, want), "missing mutational candidate %d", want)
	}
	for _, v := range vals {
		require.False(t, isSignedKind(v.Kind) && v.Int < 0, "unsigned generator must not produce negatives")
		require.LessOrEqual(t, v.Uint, uint64(math.MaxUint32))
	}
}

func TestGeneratePurityIsDeterministic(t *testing.T) {
	cfg := Config{Mutational: true, Heuristic: true, MutateRange: 3}
	orig := memtrace.IntValue(memtrace.KindInt32, 7)

	a, err := Generate(cfg, "i", orig)
	require.NoError(t, err)
	b, err := Generate(cfg, "i", orig)
	require.NoError(t, err)
	require.ElementsMatch(t, a, b)
}

func TestGeneratePointerHeuristicOnly(t *testing.T) {
	cfg := Config{Mutational: true, Heuristic: true, Random: true, RandomCases: 5, PointerSize: 8}
	orig := memtrace.UintValue(memtrace.KindPointer, 0x1000)

	vals, err := Generate(cfg, "P3", orig)
	require.NoError(t, err)
	require.Len(t, vals, 3)
	require.True(t, valueSetContainsUint(t, vals, 0))
	require.True(t, valueSetContainsUint(t, vals, 0x80000000))
}

func TestGenerateCharMutational(t *testing.T) {
	cfg := Config{Mutational: true}
	orig := memtrace.IntValue(memtrace.KindChar, 'x')

	vals, err := Generate(cfg, "c", orig)
	require.NoError(t, err)
	require.Len(t, vals, 3) // '0', '9', swapped case
}

func TestGenerateCharRandomStaysInASCIIRange(t *testing.T) {
	cfg := Config{Random: true, RandomCases: 8}
	orig := memtrace.IntValue(memtrace.KindChar, 'x')

	vals, err := Generate(cfg, "c", orig)
	require.NoError(t, err)
	require.NotEmpty(t, vals)
	require.LessOrEqual(t, len(vals), 8)
	for _, v := range vals {
		require.Equal(t, memtrace.KindChar, v.Kind)
		require.GreaterOrEqual(t, v.Int, int64(0))
		require.LessOrEqual(t, v.Int, int64(127))
	}
}

func TestGenerateFloatHeuristicIncludesSpecialValues(t *testing.T) {
	cfg := Config{Heuristic: true}
	orig := memtrace.FloatValue(memtrace.KindFloat64, 1.5)

	vals, err := Generate(cfg, "d", orig)
	require.NoError(t, err)

	var sawNaN, sawPosInf, sawNegInf bool
	for _, v := range vals {
		switch {
		case math.IsNaN(v.Float):
			sawNaN = true
		case math.IsInf(v.Float, 1):
			sawPosInf = true
		case math.IsInf(v.Float, -1):
			sawNegInf = true
		}
	}
	require.True(t, sawNaN)
	require.True(t, sawPosInf)
	require.True(t, sawNegInf)
}
