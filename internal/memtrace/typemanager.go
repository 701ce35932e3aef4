package memtrace

import (
	"fmt"

	"github.com/dbhaskaran1/morpher/internal/model"
)

// UnknownTypeError reports a user-type id absent from the model.
type UnknownTypeError struct {
	ID int
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("memtrace: unknown type id %d", e.ID)
}

// Descriptor is a concrete, resolved type: a primitive, or a
// struct/union built from field descriptors. Descriptor.Code is the
// type code it was resolved from, so FormatFor is just a projection.
type Descriptor struct {
	Code string

	// Primitive fields. Pointer codes ("P" and "P<code>") are also
	// primitives of Kind == KindPointer; PointeeCode is set only for
	// the typed form and is never expanded into a nested Descriptor,
	// which is what lets cyclic type definitions terminate.
	Primitive   bool
	Kind        Kind
	PointeeCode string

	// Aggregate fields (struct/union).
	UserKind string // "struct" | "union"
	Fields   []FieldDescriptor
}

// FieldDescriptor is one field of a struct or union descriptor, with
// its byte offset already computed (0 for every union field).
type FieldDescriptor struct {
	Code   string
	Offset int
}

// TypeManager maps type codes to descriptors and memoizes size and
// alignment, per the shared type model for one Trace. Model and
// PointerSize are exported so a Trace gob-encodes TypeManager using
// the default codec; the caches are unexported and are simply absent
// after a round trip, which is correct since they are pure
// memoization recomputed on first use.
type TypeManager struct {
	Model       *model.Model
	PointerSize int

	classCache map[string]*Descriptor
	sizeCache  map[string]int
	alignCache map[string]int
}

// NewTypeManager builds a TypeManager over m using the given host
// pointer size (4 or 8).
func NewTypeManager(m *model.Model, pointerSize int) *TypeManager {
	return &TypeManager{Model: m, PointerSize: pointerSize}
}

func (tm *TypeManager) ensureCaches() {
	if tm.classCache == nil {
		tm.classCache = make(map[string]*Descriptor)
	}
	if tm.sizeCache == nil {
		tm.sizeCache = make(map[string]int)
	}
	if tm.alignCache == nil {
		tm.alignCache = make(map[string]int)
	}
}

// Align rounds offset up to the next multiple of alignment.
func Align(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

// ClassFor resolves code to a Descriptor, building it lazily and
// memoizing the result. Pointer fields inside a struct/union are
// never expanded here (only PointeeCode is recorded), so cyclic
// definitions (a struct holding a pointer to itself) terminate.
func (tm *TypeManager) ClassFor(code string) (*Descriptor, error) {
	tm.ensureCaches()
	if d, ok := tm.classCache[code]; ok {
		return d, nil
	}

	if IsPointerCode(code) {
		d := &Descriptor{Code: code, Primitive: true, Kind: KindPointer}
		if pointee, ok := PointeeCode(code); ok {
			d.PointeeCode = pointee
		}
		tm.classCache[code] = d
		return d, nil
	}

	if id, ok := UserTypeID(code); ok {
		ut, present := tm.Model.UserTypes[id]
		if !present {
			return nil, &UnknownTypeError{ID: id}
		}
		d := &Descriptor{Code: code, UserKind: ut.Kind}
		// Cached before its fields are filled in. A self-referential
		// pointer field such as "P3" resolves through the pointer
		// branch above and never re-enters this one.
		tm.classCache[code] = d

		offset := 0
		maxAlign := 1
		for _, fieldCode := range ut.Fields {
			fsize, falign, err := tm.Info(fieldCode)
			if err != nil {
				return nil, err
			}
			var foff int
			if ut.Kind == "union" {
				foff = 0
			} else {
				foff = Align(offset, falign)
				offset = foff + fsize
			}
			if falign > maxAlign {
				maxAlign = falign
			}
			d.Fields = append(d.Fields, FieldDescriptor{Code: fieldCode, Offset: foff})
		}
		return d, nil
	}

	if len(code) != 1 {
		return nil, fmt.Errorf("memtrace: malformed type code %q", code)
	}
	k, err := kindOf(code[0])
	if err != nil {
		return nil, err
	}
	d := &Descriptor{Code: code, Primitive: true, Kind: k}
	tm.classCache[code] = d
	return d, nil
}

// Info returns (size, alignment) in bytes for code, memoized.
func (tm *TypeManager) Info(code string) (size, align int, err error) {
	tm.ensureCaches()
	if s, ok := tm.sizeCache[code]; ok {
		return s, tm.alignCache[code], nil
	}

	d, err := tm.ClassFor(code)
	if err != nil {
		return 0, 0, err
	}

	if d.Primitive {
		size = kindSize(d.Kind, tm.PointerSize)
		align = size
		tm.sizeCache[code] = size
		tm.alignCache[code] = align
		return size, align, nil
	}

	id, _ := UserTypeID(code)
	ut := tm.Model.UserTypes[id]

	switch ut.Kind {
	case "union":
		for _, fieldCode := range ut.Fields {
			fsize, falign, ferr := tm.Info(fieldCode)
			if ferr != nil {
				return 0, 0, ferr
			}
			if fsize > size {
				size = fsize
			}
			if falign > align {
				align = falign
			}
		}
	default: // struct
		offset := 0
		for _, fieldCode := range ut.Fields {
			fsize, falign, ferr := tm.Info(fieldCode)
			if ferr != nil {
				return 0, 0, ferr
			}
			offset = Align(offset, falign)
			offset += fsize
			if falign > align {
				align = falign
			}
		}
		size = Align(offset, align)
	}
	if align == 0 {
		align = 1
	}
	tm.sizeCache[code] = size
	tm.alignCache[code] = align
	return size, align, nil
}

// FormatFor is the inverse of ClassFor on primitives: it recovers the
// type code a descriptor was resolved from, used when a caller needs
// to re-enter the walker (e.g. recursing into a field) from a
// Descriptor alone.
func (tm *TypeManager) FormatFor(d *Descriptor) string {
	return d.Code
}

// LargestField returns the index of the largest field in a union
// descriptor, breaking ties by declaration order (first wins), per
// the verbatim "pick the largest field" union-read policy.
func (tm *TypeManager) LargestField(d *Descriptor) (int, error) {
	if d.UserKind != "union" {
		return 0, fmt.Errorf("memtrace: LargestField on non-union descriptor %q", d.Code)
	}
	best := -1
	bestSize := -1
	for i, f := range d.Fields {
		fsize, _, err := tm.Info(f.Code)
		if err != nil {
			return 0, err
		}
		if fsize > bestSize {
			best, bestSize = i, fsize
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("memtrace: union %q has no fields", d.Code)
	}
	return best, nil
}
