package memtrace

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is a boxed primitive, tagged by Kind. Exactly one of the
// numeric fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Int   int64
	Uint  uint64
	Float float64
}

func IntValue(k Kind, v int64) Value     { return Value{Kind: k, Int: v} }
func UintValue(k Kind, v uint64) Value   { return Value{Kind: k, Uint: v} }
func FloatValue(k Kind, v float64) Value { return Value{Kind: k, Float: v} }

// Equal compares two values for the set-uniqueness semantics the
// Generator relies on: same kind and same underlying bits.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindFloat32, KindFloat64:
		return math.Float64bits(v.Float) == math.Float64bits(o.Float)
	default:
		if isSigned(v.Kind) {
			return v.Int == o.Int
		}
		return v.Uint == o.Uint
	}
}

// Key returns a canonical comparable representation suitable for use
// as a map key when deduplicating a generated candidate set.
func (v Value) Key() [3]uint64 {
	switch v.Kind {
	case KindFloat32, KindFloat64:
		return [3]uint64{uint64(v.Kind), math.Float64bits(v.Float), 0}
	default:
		if isSigned(v.Kind) {
			return [3]uint64{uint64(v.Kind), uint64(v.Int), 1}
		}
		return [3]uint64{uint64(v.Kind), v.Uint, 2}
	}
}

func isSigned(k Kind) bool {
	switch k {
	case KindChar, KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	default:
		return false
	}
}

// Bounds returns the representable [min, max] range for integer
// kinds, as float64 so it can also bound a scaled/negated mutation
// before clamping back into the kind's native width.
func Bounds(k Kind, pointerSize int) (min, max float64) {
	switch k {
	case KindChar, KindInt8:
		return math.MinInt8, math.MaxInt8
	case KindUint8:
		return 0, math.MaxUint8
	case KindInt16:
		return math.MinInt16, math.MaxInt16
	case KindUint16:
		return 0, math.MaxUint16
	case KindInt32:
		return math.MinInt32, math.MaxInt32
	case KindUint32:
		return 0, math.MaxUint32
	case KindInt64:
		return math.MinInt64, math.MaxInt64
	case KindUint64:
		return 0, math.MaxUint64
	case KindPointer:
		if pointerSize == 4 {
			return 0, math.MaxUint32
		}
		return 0, math.MaxFloat64 // effectively unbounded at 8 bytes
	default:
		return 0, 0
	}
}

// ClampInt clamps a signed value into kind's representable range.
func ClampInt(k Kind, v int64) int64 {
	min, max := Bounds(k, 8)
	if float64(v) < min {
		return int64(min)
	}
	if float64(v) > max {
		return int64(max)
	}
	return v
}

// ClampUint clamps an unsigned value into kind's representable range.
func ClampUint(k Kind, v uint64) uint64 {
	_, max := Bounds(k, 8)
	if max != math.MaxFloat64 && float64(v) > max {
		return uint64(max)
	}
	return v
}

// EncodeValue packs v into size bytes using order, the host byte
// order captured at recording time.
func EncodeValue(v Value, size int, order binary.ByteOrder) ([]byte, error) {
	buf := make([]byte, size)
	switch size {
	case 1:
		if isSigned(v.Kind) {
			buf[0] = byte(v.Int)
		} else {
			buf[0] = byte(v.Uint)
		}
	case 2:
		u := v.Uint
		if isSigned(v.Kind) {
			u = uint64(uint16(v.Int))
		}
		order.PutUint16(buf, uint16(u))
	case 4:
		switch v.Kind {
		case KindFloat32:
			order.PutUint32(buf, math.Float32bits(float32(v.Float)))
		default:
			u := v.Uint
			if isSigned(v.Kind) {
				u = uint64(uint32(v.Int))
			}
			order.PutUint32(buf, uint32(u))
		}
	case 8:
		switch v.Kind {
		case KindFloat64:
			order.PutUint64(buf, math.Float64bits(v.Float))
		default:
			u := v.Uint
			if isSigned(v.Kind) {
				u = uint64(v.Int)
			}
			order.PutUint64(buf, u)
		}
	default:
		return nil, fmt.Errorf("memtrace: unsupported primitive size %d", size)
	}
	return buf, nil
}

// DecodeValue unpacks bytes (of len size) into a Value of kind k.
func DecodeValue(data []byte, k Kind, size int, order binary.ByteOrder) (Value, error) {
	if len(data) < size {
		return Value{}, fmt.Errorf("memtrace: short buffer decoding %s: need %d, have %d", k, size, len(data))
	}
	switch size {
	case 1:
		if isSigned(k) {
			return Value{Kind: k, Int: int64(int8(data[0]))}, nil
		}
		return Value{Kind: k, Uint: uint64(data[0])}, nil
	case 2:
		u := order.Uint16(data)
		if isSigned(k) {
			return Value{Kind: k, Int: int64(int16(u))}, nil
		}
		return Value{Kind: k, Uint: uint64(u)}, nil
	case 4:
		u := order.Uint32(data)
		if k == KindFloat32 {
			return Value{Kind: k, Float: float64(math.Float32frombits(u))}, nil
		}
		if isSigned(k) {
			return Value{Kind: k, Int: int64(int32(u))}, nil
		}
		return Value{Kind: k, Uint: uint64(u)}, nil
	case 8:
		u := order.Uint64(data)
		if k == KindFloat64 {
			return Value{Kind: k, Float: math.Float64frombits(u)}, nil
		}
		if isSigned(k) {
			return Value{Kind: k, Int: int64(u)}, nil
		}
		return Value{Kind: k, Uint: u}, nil
	default:
		return Value{}, fmt.Errorf("memtrace: unsupported primitive size %d", size)
	}
}
