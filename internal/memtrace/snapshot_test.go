package memtrace

import (
	"encoding/binary"
	"testing"

	"github.com/dbhaskaran1/morpher/internal/model"
	"github.com/stretchr/testify/require"
)

// TestSnapshotReplayMaterializesStructWithPointer: a struct holding a
// pointer-to-byte field and a nested struct field, materialized by
// Replay after Memory.Patch.
func TestSnapshotReplayMaterializesStructWithPointer(t *testing.T) {
	order := binary.LittleEndian
	m := &model.Model{UserTypes: map[int]model.UserType{
		2: {ID: 2, Kind: "struct", Fields: []string{"c", "i"}},
		5: {ID: 5, Kind: "struct", Fields: []string{"Pb", "2"}},
	}}
	tm := NewTypeManager(m, 8)

	// Layout of usertype 5 on an 8-byte-pointer host: offset 0 pointer
	// (8 bytes), offset 8 nested struct{c,i} (align 4): char at 8,
	// int at 12. Total size 16.
	size, _, err := tm.Info("5")
	require.NoError(t, err)
	require.Equal(t, int64(16), int64(size))

	argBlock, err := NewBlock(0x4000, make([]byte, size))
	require.NoError(t, err)
	byteBlock, err := NewBlock(0x5000, []byte{0x99})
	require.NoError(t, err)

	mem, err := NewMemory([]*Block{argBlock, byteBlock})
	require.NoError(t, err)

	// Write the pointer field (captured virtual target 0x5000).
	require.NoError(t, argBlock.WriteAs(0x4000, UintValue(KindPointer, 0x5000), 8, order))
	// Write nested struct{c,i}: char 'Z', int 42.
	require.NoError(t, argBlock.WriteAs(0x4008, IntValue(KindChar, 'Z'), 1, order))
	require.NoError(t, argBlock.WriteAs(0x400c, IntValue(KindInt32, 42), 4, order))

	snap := NewSnapshot("Frobnicate", mem)
	require.NoError(t, snap.AddTag(tm, Tag{Addr: 0x4000, Code: "Pb"}))
	snap.SetArgs([]Tag{{Addr: 0x4000, Code: "5"}})

	name, args, err := snap.Replay(tm)
	require.NoError(t, err)
	require.Equal(t, "Frobnicate", name)
	require.Len(t, args, 1)

	top := args[0]
	require.Len(t, top.Fields, 2)

	ptrField := top.Fields[0]
	require.Equal(t, KindPointer, ptrField.Value.Kind)
	realTarget, err := byteBlock.Translate(0x5000)
	require.NoError(t, err)
	require.Equal(t, uint64(realTarget), ptrField.Value.Uint)

	// Dereference the patched pointer and confirm it recovers the
	// captured byte.
	deref, err := byteBlock.Read(0x5000, 1)
	require.NoError(t, err)
	require.Equal(t, byte(0x99), deref[0])

	nested := top.Fields[1]
	require.Len(t, nested.Fields, 2)
	require.Equal(t, int64('Z'), nested.Fields[0].Value.Int)
	require.Equal(t, int64(42), nested.Fields[1].Value.Int)
}

func TestSnapshotReplayIsDeterministic(t *testing.T) {
	order := binary.LittleEndian
	m := &model.Model{}
	tm := NewTypeManager(m, 4)

	b, err := NewBlock(0x1000, make([]byte, 4))
	require.NoError(t, err)
	require.NoError(t, b.WriteAs(0x1000, IntValue(KindInt32, -7), 4, order))
	mem, err := NewMemory([]*Block{b})
	require.NoError(t, err)

	snap := NewSnapshot("Noop", mem)
	snap.SetArgs([]Tag{{Addr: 0x1000, Code: "i"}})

	_, args1, err := snap.Replay(tm)
	require.NoError(t, err)
	_, args2, err := snap.Replay(tm)
	require.NoError(t, err)

	require.Equal(t, args1, args2)
}
