package memtrace

import (
	"fmt"
	"strconv"
)

// Kind identifies the primitive representation backing a type code.
type Kind int

const (
	KindChar Kind = iota
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindChar:
		return "char"
	case KindInt8:
		return "int8"
	case KindUint8:
		return "uint8"
	case KindInt16:
		return "int16"
	case KindUint16:
		return "uint16"
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// IsPointerCode reports whether code names a pointer: either the bare
// opaque "P" or "P" followed by a pointee type code.
func IsPointerCode(code string) bool {
	return len(code) > 0 && code[0] == 'P'
}

// PointeeCode returns the type code a pointer code points to, and
// whether the pointer is typed at all ("P" alone is opaque and is
// never followed).
func PointeeCode(code string) (string, bool) {
	if !IsPointerCode(code) || len(code) == 1 {
		return "", false
	}
	return code[1:], true
}

// UserTypeID reports whether code is a decimal user-type id, and if
// so, which one.
func UserTypeID(code string) (int, bool) {
	if code == "" {
		return 0, false
	}
	id, err := strconv.Atoi(code)
	if err != nil {
		return 0, false
	}
	return id, true
}

// LeadingCode returns the top-level primitive letter for a type code:
// itself for a bare primitive letter, "P" for any pointer code, or the
// code unchanged for a user-type decimal id.
func LeadingCode(code string) string {
	if IsPointerCode(code) {
		return "P"
	}
	if _, ok := UserTypeID(code); ok {
		return code
	}
	if code != "" {
		return code[:1]
	}
	return code
}

// kindOf maps a bare primitive letter to its Kind. Only called for
// single-letter codes; "P" is handled by the caller with the
// configured pointer size.
func kindOf(letter byte) (Kind, error) {
	switch letter {
	case 'c':
		return KindChar, nil
	case 'b':
		return KindInt8, nil
	case 'B':
		return KindUint8, nil
	case 'h':
		return KindInt16, nil
	case 'H':
		return KindUint16, nil
	case 'i', 'l':
		return KindInt32, nil
	case 'I', 'L':
		return KindUint32, nil
	case 'q':
		return KindInt64, nil
	case 'Q':
		return KindUint64, nil
	case 'f':
		return KindFloat32, nil
	case 'd':
		return KindFloat64, nil
	case 'P':
		return KindPointer, nil
	default:
		return 0, fmt.Errorf("memtrace: unknown primitive code %q", string(letter))
	}
}

// kindSize returns the byte width of kind, given the host pointer
// size for KindPointer.
func kindSize(k Kind, pointerSize int) int {
	switch k {
	case KindChar, KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64:
		return 8
	case KindPointer:
		return pointerSize
	default:
		return 0
	}
}
