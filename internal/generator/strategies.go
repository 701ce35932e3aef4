package generator

import (
	"math"
	"math/rand"

	"github.com/dbhaskaran1/morpher/internal/memtrace"
)

func mutationalChar(orig memtrace.Value) []memtrace.Value {
	c := byte(orig.Int)
	var out []memtrace.Value
	switch {
	case c >= '0' && c <= '9':
		out = append(out, memtrace.IntValue(memtrace.KindChar, 'a'), memtrace.IntValue(memtrace.KindChar, 'Z'))
	default:
		out = append(out, memtrace.IntValue(memtrace.KindChar, '0'), memtrace.IntValue(memtrace.KindChar, '9'))
		out = append(out, memtrace.IntValue(memtrace.KindChar, int64(swapCase(c))))
	}
	return out
}

func swapCase(c byte) byte {
	switch {
	case c >= 'a' && c <= 'z':
		return c - ('a' - 'A')
	case c >= 'A' && c <= 'Z':
		return c + ('a' - 'A')
	default:
		return c
	}
}

func isSignedKind(k memtrace.Kind) bool {
	switch k {
	case memtrace.KindChar, memtrace.KindInt8, memtrace.KindInt16, memtrace.KindInt32, memtrace.KindInt64:
		return true
	default:
		return false
	}
}

// MutationalInt perturbs orig in a small numeric neighborhood:
// original ± k for k in 1..mutateRange, plus scaled variants,
// clamped to the type's representable range.
func MutationalInt(k memtrace.Kind, orig memtrace.Value, mutateRange int) []memtrace.Value {
	min, max := memtrace.Bounds(k, 8)
	signed := isSignedKind(k)

	var candidates []float64
	if signed {
		o := float64(orig.Int)
		for x := mutateRange; x > 0; x-- {
			candidates = append(candidates, o+float64(x), o-float64(x))
		}
		candidates = append(candidates, -o)
		for _, scale := range []float64{0.5, 0.25, 2, 4} {
			e := o * scale
			candidates = append(candidates, e, -e)
		}
	} else {
		o := float64(orig.Uint)
		for x := mutateRange; x > 0; x-- {
			candidates = append(candidates, o+float64(x), o-float64(x))
		}
		for _, scale := range []float64{0.5, 0.25, 2, 4} {
			candidates = append(candidates, o*scale)
		}
	}

	var out []memtrace.Value
	for _, c := range candidates {
		if c < min || c > max {
			continue
		}
		if signed {
			out = append(out, memtrace.IntValue(k, int64(c)))
		} else {
			out = append(out, memtrace.UintValue(k, uint64(c)))
		}
	}
	return out
}

// HeuristicInt returns the fixed boundary values: min, max, 0 (signed
// only), each ±0..4, plus the half/quarter points of min and max,
// each ±0..4, clamped into range.
func HeuristicInt(k memtrace.Kind) []memtrace.Value {
	min, max := memtrace.Bounds(k, 8)
	signed := isSignedKind(k)

	bases := []float64{min, max, max / 2, max / 4}
	if signed {
		bases = append(bases, 0, min/2, min/4)
	}

	var out []memtrace.Value
	for _, b := range bases {
		for x := 0; x <= 4; x++ {
			for _, v := range []float64{b + float64(x), b - float64(x)} {
				if v < min || v > max {
					continue
				}
				if signed {
					out = append(out, memtrace.IntValue(k, int64(v)))
				} else {
					out = append(out, memtrace.UintValue(k, uint64(v)))
				}
			}
		}
	}
	return out
}

// RandomInt draws one value uniformly from the type's legal range.
func RandomInt(k memtrace.Kind, rng *rand.Rand) memtrace.Value {
	min, max := memtrace.Bounds(k, 8)
	signed := isSignedKind(k)
	span := max - min
	v := min + rng.Float64()*span
	if signed {
		return memtrace.IntValue(k, int64(v))
	}
	return memtrace.UintValue(k, uint64(v))
}

// MutationalFloat perturbs orig by small additive offsets and by
// {1/2, 1/3, 1/4, 2, 3, 4} scaling (and negation).
func MutationalFloat(k memtrace.Kind, orig memtrace.Value, mutateRange int) []memtrace.Value {
	o := orig.Float
	var candidates []float64
	for x := mutateRange; x > 0; x-- {
		candidates = append(candidates, o+float64(x), o-float64(x))
	}
	for _, scale := range []float64{0.5, 1.0 / 3, 0.25, 2, 3, 4} {
		e := o * scale
		candidates = append(candidates, e, -e)
	}

	minFloat, maxFloat := floatMagnitudeBounds(k)
	var out []memtrace.Value
	for _, c := range candidates {
		if a := math.Abs(c); a < minFloat || a > maxFloat {
			continue
		}
		out = append(out, memtrace.FloatValue(k, c))
	}
	return out
}

func floatMagnitudeBounds(k memtrace.Kind) (min, max float64) {
	if k == memtrace.KindFloat64 {
		return 10e-323, math.MaxFloat64
	}
	return 10e-44, 10e38
}

func heuristicFloat(k memtrace.Kind) []memtrace.Value {
	minFloat, maxFloat := floatMagnitudeBounds(k)
	vals := []float64{
		math.NaN(), math.Inf(1), math.Inf(-1), math.Copysign(0, -1), 0,
		maxFloat, minFloat,
		maxFloat / 2, maxFloat / 3, maxFloat / 4,
		minFloat * 2, minFloat * 3, minFloat * 4,
		-minFloat, -maxFloat,
		-minFloat * 2, -minFloat * 3, -minFloat * 4,
		-maxFloat / 2, -maxFloat / 3, -maxFloat / 4,
	}
	out := make([]memtrace.Value, 0, len(vals))
	for _, v := range vals {
		out = append(out, memtrace.FloatValue(k, v))
	}
	return out
}

// heuristicPointers is the fixed {0, -1, 0x80000000} set. The third
// value assumes a 32-bit-style kernel/user address-space split: it
// passes NULL checks but faults on any dereference. Not portable to
// every target's address-space layout.
func heuristicPointers(pointerSize int) []memtrace.Value {
	allOnes := uint64(math.MaxUint64)
	if pointerSize == 4 {
		allOnes = math.MaxUint32
	}
	return []memtrace.Value{
		memtrace.UintValue(memtrace.KindPointer, 0),
		memtrace.UintValue(memtrace.KindPointer, allOnes),
		memtrace.UintValue(memtrace.KindPointer, 0x80000000),
	}
}
