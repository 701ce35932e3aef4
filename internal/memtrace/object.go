package memtrace

import "encoding/binary"

// Object is a materialized argument: either a primitive leaf value,
// or a struct/union arena built by recursively loading each field at
// its aligned offset. Bytes always holds the object's full
// byte-for-byte contiguous representation, so a caller can hand
// &Bytes[0] to the C callee as the argument arena regardless of
// whether the object is a primitive, struct, or union.
type Object struct {
	Code   string
	Value  Value // meaningful only when Primitive
	Fields []Object
	Bytes  []byte
}

func (o Object) Primitive() bool { return o.Fields == nil }

// loadObject is the recursive materializer: a primitive reads and
// boxes its bytes; a struct walks its fields at aligned offsets; a
// union loads only its largest field, since the captured bytes
// already satisfy every interpretation.
func loadObject(tm *TypeManager, mem *Memory, addr int64, code string, order binary.ByteOrder) (Object, error) {
	d, err := tm.ClassFor(code)
	if err != nil {
		return Object{}, err
	}

	if d.Primitive {
		size, _, err := tm.Info(code)
		if err != nil {
			return Object{}, err
		}
		v, err := mem.ReadAs(addr, d.Kind, size, order)
		if err != nil {
			return Object{}, err
		}
		raw, err := EncodeValue(v, size, order)
		if err != nil {
			return Object{}, err
		}
		return Object{Code: code, Value: v, Bytes: raw}, nil
	}

	size, _, err := tm.Info(code)
	if err != nil {
		return Object{}, err
	}

	if d.UserKind == "union" {
		idx, err := tm.LargestField(d)
		if err != nil {
			return Object{}, err
		}
		field := d.Fields[idx]
		child, err := loadObject(tm, mem, addr+int64(field.Offset), field.Code, order)
		if err != nil {
			return Object{}, err
		}
		arena := make([]byte, size)
		copy(arena, child.Bytes)
		return Object{Code: code, Fields: []Object{child}, Bytes: arena}, nil
	}

	// struct
	arena := make([]byte, size)
	fields := make([]Object, 0, len(d.Fields))
	for _, f := range d.Fields {
		child, err := loadObject(tm, mem, addr+int64(f.Offset), f.Code, order)
		if err != nil {
			return Object{}, err
		}
		copy(arena[f.Offset:], child.Bytes)
		fields = append(fields, child)
	}
	return Object{Code: code, Fields: fields, Bytes: arena}, nil
}
