package memtrace

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// RangeError reports an out-of-bounds access against a Block or
// Memory. Out-of-range access is a programmer error and is never
// silently truncated.
type RangeError struct {
	Addr, N int64
	Reason  string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("memtrace: invalid range [%#x, %#x): %s", e.Addr, e.Addr+e.N, e.Reason)
}

// Block owns one captured, contiguous byte range at a fixed virtual
// base address. Data is exported so the default gob codec can
// serialize it without custom encoding, matching the "list of
// (addr, bytes)" persisted shape.
type Block struct {
	VirtualBase int64
	Data        []byte
}

// NewBlock constructs a Block. size(Data) must be > 0.
func NewBlock(virtualBase int64, data []byte) (*Block, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("memtrace: block at %#x has zero size", virtualBase)
	}
	return &Block{VirtualBase: virtualBase, Data: data}, nil
}

// Size returns the block's byte length.
func (b *Block) Size() int64 {
	return int64(len(b.Data))
}

// Contains reports whether [addr, addr+n) lies entirely inside b.
func (b *Block) Contains(addr, n int64) bool {
	if n <= 0 {
		return false
	}
	return addr >= b.VirtualBase && addr+n <= b.VirtualBase+b.Size()
}

// Read returns a copy of the n bytes at virtual addr.
func (b *Block) Read(addr, n int64) ([]byte, error) {
	if !b.Contains(addr, n) {
		return nil, &RangeError{addr, n, "outside block"}
	}
	off := addr - b.VirtualBase
	out := make([]byte, n)
	copy(out, b.Data[off:off+n])
	return out, nil
}

// Write overwrites the bytes at virtual addr with data.
func (b *Block) Write(addr int64, data []byte) error {
	n := int64(len(data))
	if !b.Contains(addr, n) {
		return &RangeError{addr, n, "outside block"}
	}
	off := addr - b.VirtualBase
	copy(b.Data[off:off+n], data)
	return nil
}

// ReadAs reads size bytes at addr and unpacks them as kind using
// order, the host byte order captured at record time.
func (b *Block) ReadAs(addr int64, k Kind, size int, order binary.ByteOrder) (Value, error) {
	raw, err := b.Read(addr, int64(size))
	if err != nil {
		return Value{}, err
	}
	return DecodeValue(raw, k, size, order)
}

// WriteAs packs v into size bytes using order and writes it at addr.
func (b *Block) WriteAs(addr int64, v Value, size int, order binary.ByteOrder) error {
	raw, err := EncodeValue(v, size, order)
	if err != nil {
		return err
	}
	return b.Write(addr, raw)
}

// Translate returns the real (current-process) address currently
// backing the byte at virtual addr. The block's backing array is
// pinned for the block's lifetime by the caller holding a reference
// to Data, so the address is stable for as long as the Block exists.
func (b *Block) Translate(addr int64) (int64, error) {
	if !b.Contains(addr, 1) {
		return 0, &RangeError{addr, 1, "outside block"}
	}
	real := int64(uintptr(unsafe.Pointer(&b.Data[0])))
	return real + (addr - b.VirtualBase), nil
}
