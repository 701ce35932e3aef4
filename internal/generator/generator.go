// Package generator produces bounded sets of mutated candidate values
// for a single tagged value, using three independently switchable
// strategies: mutational, heuristic, and random.
package generator

import (
	"math/rand"

	"github.com/dbhaskaran1/morpher/internal/memtrace"
)

// Config controls which strategies contribute and their parameters.
// Field names mirror the fuzzer.* configuration keys.
type Config struct {
	Mutational  bool
	MutateRange int

	Heuristic bool

	Random      bool
	RandomCases int

	PointerSize int

	// Rand is the source random.Rand values are drawn from for the
	// random strategy. Nil gives each Generate call a fresh source
	// seeded with 1, so repeated calls draw the same values.
	Rand *rand.Rand
}

func (c Config) rng() *rand.Rand {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.New(rand.NewSource(1))
}

// heuristicChars is the fixed boundary character set the heuristic
// strategy contributes for char values.
var heuristicChars = []byte{
	'\000', '\r', '\n', '\b', '\t', ' ', '@', '%', ':', '\\', '/', '|', '=', ',', ';', ')', '(', '"', '.', 255,
}

// Generate returns the set (deduplicated by value equality) of
// mutated candidates for one tagged value. Each enabled strategy
// contributes independently; the union is the result.
func Generate(cfg Config, code string, original memtrace.Value) ([]memtrace.Value, error) {
	out := newValueSet()

	if memtrace.IsPointerCode(code) {
		// Heuristic pointer values only; mutational and random never
		// touch pointers, since mutating a live pointer in-process is
		// catastrophic.
		if cfg.Heuristic {
			for _, v := range heuristicPointers(cfg.PointerSize) {
				out.add(v)
			}
		}
		return out.values(), nil
	}

	k := original.Kind
	switch k {
	case memtrace.KindChar:
		if cfg.Mutational {
			for _, v := range mutationalChar(original) {
				out.add(v)
			}
		}
		if cfg.Heuristic {
			for _, c := range heuristicChars {
				out.add(memtrace.IntValue(memtrace.KindChar, int64(c)))
			}
		}
		if cfg.Random {
			rng := cfg.rng()
			for i := 0; i < cfg.RandomCases; i++ {
				out.add(memtrace.IntValue(memtrace.KindChar, int64(rng.Intn(128))))
			}
		}
	case memtrace.KindFloat32, memtrace.KindFloat64:
		if cfg.Mutational {
			for _, v := range MutationalFloat(k, original, cfg.MutateRange) {
				out.add(v)
			}
		}
		if cfg.Heuristic {
			for _, v := range heuristicFloat(k) {
				out.add(v)
			}
		}
		if cfg.Random {
			rng := cfg.rng()
			for i := 0; i < cfg.RandomCases; i++ {
				sign := 1.0
				if rng.Intn(2) == 0 {
					sign = -1.0
				}
				out.add(memtrace.FloatValue(k, rng.Float64()*3.4e38*sign))
			}
		}
	default: // integer kinds
		if cfg.Mutational {
			for _, v := range MutationalInt(k, original, cfg.MutateRange) {
				out.add(v)
			}
		}
		if cfg.Heuristic {
			for _, v := range HeuristicInt(k) {
				out.add(v)
			}
		}
		if cfg.Random {
			rng := cfg.rng()
			for i := 0; i < cfg.RandomCases; i++ {
				out.add(RandomInt(k, rng))
			}
		}
	}

	return out.values(), nil
}

type valueSet struct {
	seen map[[3]uint64]bool
	vals []memtrace.Value
}

func newValueSet() *valueSet {
	return &valueSet{seen: make(map[[3]uint64]bool)}
}

func (s *valueSet) add(v memtrace.Value) {
	key := v.Key()
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.vals = append(s.vals, v)
}

func (s *valueSet) values() []memtrace.Value {
	return s.vals
}
