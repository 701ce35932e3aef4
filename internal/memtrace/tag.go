package memtrace

// Tag identifies one object inside a Memory by its virtual address
// and type code. Tag is an immutable value type; equality and
// hashing fall out of Go's comparable-struct semantics, so a Tag can
// be used directly as a map key or set element.
type Tag struct {
	Addr int64
	Code string
}
