package memtrace

import (
	"encoding/binary"
	"fmt"
)

// Memory fronts a set of pairwise non-overlapping Blocks by virtual
// address, and tracks which captured addresses hold pointer values
// due for patching after deserialization. Exported fields keep the
// type a plain gob-encodable value: the persisted form is exactly
// the block list plus the registered pointer set.
type Memory struct {
	Blocks   []*Block
	Pointers map[int64]bool
}

// NewMemory validates non-overlap and builds a Memory over blocks.
func NewMemory(blocks []*Block) (*Memory, error) {
	for i, a := range blocks {
		for j, b := range blocks {
			if i == j {
				continue
			}
			if a.VirtualBase < b.VirtualBase+b.Size() && b.VirtualBase < a.VirtualBase+a.Size() {
				return nil, fmt.Errorf("memtrace: overlapping blocks at %#x and %#x", a.VirtualBase, b.VirtualBase)
			}
		}
	}
	return &Memory{Blocks: blocks, Pointers: make(map[int64]bool)}, nil
}

func (m *Memory) findBlock(addr, n int64) (*Block, error) {
	for _, b := range m.Blocks {
		if b.Contains(addr, n) {
			return b, nil
		}
	}
	return nil, &RangeError{addr, n, "no owning block"}
}

// ContainsAddress reports whether [addr, addr+n) lies entirely inside
// exactly one Block.
func (m *Memory) ContainsAddress(addr, n int64) bool {
	_, err := m.findBlock(addr, n)
	return err == nil
}

// Read returns a copy of n bytes starting at virtual addr.
func (m *Memory) Read(addr, n int64) ([]byte, error) {
	b, err := m.findBlock(addr, n)
	if err != nil {
		return nil, err
	}
	return b.Read(addr, n)
}

// Write overwrites bytes starting at virtual addr.
func (m *Memory) Write(addr int64, data []byte) error {
	b, err := m.findBlock(addr, int64(len(data)))
	if err != nil {
		return err
	}
	return b.Write(addr, data)
}

// ReadAs reads and unpacks a typed value at addr.
func (m *Memory) ReadAs(addr int64, k Kind, size int, order binary.ByteOrder) (Value, error) {
	b, err := m.findBlock(addr, int64(size))
	if err != nil {
		return Value{}, err
	}
	return b.ReadAs(addr, k, size, order)
}

// WriteAs packs and writes a typed value at addr.
func (m *Memory) WriteAs(addr int64, v Value, size int, order binary.ByteOrder) error {
	b, err := m.findBlock(addr, int64(size))
	if err != nil {
		return err
	}
	return b.WriteAs(addr, v, size, order)
}

// Translate returns the real address currently backing virtual addr.
func (m *Memory) Translate(addr int64) (int64, error) {
	b, err := m.findBlock(addr, 1)
	if err != nil {
		return 0, err
	}
	return b.Translate(addr)
}

// RegisterPointer marks addr as holding a pointer value that Patch
// must rewrite.
func (m *Memory) RegisterPointer(addr int64) {
	if m.Pointers == nil {
		m.Pointers = make(map[int64]bool)
	}
	m.Pointers[addr] = true
}

// UnregisterPointer reverses RegisterPointer.
func (m *Memory) UnregisterPointer(addr int64) {
	delete(m.Pointers, addr)
}

// Patch rewrites every registered pointer's stored value from its
// captured virtual target to the real address the target now
// occupies in this process. Pointers whose target is not covered by
// any Block in this Memory are left unchanged; that is expected for
// null pointers and pointers into kernel or otherwise unreachable
// memory. Patch is idempotent only across a fresh deserialization;
// calling it twice on an already-patched, live Memory double-
// translates and is not a defined operation.
func (m *Memory) Patch(pointerSize int, order binary.ByteOrder) error {
	for addr := range m.Pointers {
		v, err := m.ReadAs(addr, KindPointer, pointerSize, order)
		if err != nil {
			return fmt.Errorf("memtrace: patch: reading pointer at %#x: %w", addr, err)
		}
		target := int64(v.Uint)

		owner, err := m.findBlock(target, 1)
		if err != nil {
			// Target isn't covered by this Memory: leave as-is.
			continue
		}
		real, err := owner.Translate(target)
		if err != nil {
			return fmt.Errorf("memtrace: patch: translating %#x: %w", target, err)
		}
		if err := m.WriteAs(addr, UintValue(KindPointer, uint64(real)), pointerSize, order); err != nil {
			return fmt.Errorf("memtrace: patch: rewriting pointer at %#x: %w", addr, err)
		}
	}
	return nil
}
