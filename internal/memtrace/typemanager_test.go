package memtrace

import (
	"testing"

	"github.com/dbhaskaran1/morpher/internal/model"
	"github.com/stretchr/testify/require"
)

func sampleModel() *model.Model {
	return &model.Model{
		UserTypes: map[int]model.UserType{
			2: {ID: 2, Kind: "struct", Fields: []string{"c", "i"}},
			3: {ID: 3, Kind: "struct", Fields: []string{"P3", "2"}},
			4: {ID: 4, Kind: "union", Fields: []string{"b", "q"}},
		},
	}
}

func TestTypeManagerPrimitiveInfo(t *testing.T) {
	tm := NewTypeManager(sampleModel(), 8)

	size, align, err := tm.Info("I")
	require.NoError(t, err)
	require.Equal(t, 4, size)
	require.Equal(t, 4, align)

	size, align, err = tm.Info("P")
	require.NoError(t, err)
	require.Equal(t, 8, size)
	require.Equal(t, 8, align)
}

func TestTypeManagerStructLayout(t *testing.T) {
	tm := NewTypeManager(sampleModel(), 8)

	// struct { c; i } -> char at 0, int padded to offset 4, size 8, align 4.
	size, align, err := tm.Info("2")
	require.NoError(t, err)
	require.Equal(t, 8, size)
	require.Equal(t, 4, align)

	d, err := tm.ClassFor("2")
	require.NoError(t, err)
	require.Equal(t, []FieldDescriptor{{Code: "c", Offset: 0}, {Code: "i", Offset: 4}}, d.Fields)
}

func TestTypeManagerSelfReferentialPointerFieldDoesNotExpand(t *testing.T) {
	tm := NewTypeManager(sampleModel(), 8)

	// struct 3 { P3 (pointer to self), 2 } must not recurse forever.
	size, _, err := tm.Info("3")
	require.NoError(t, err)
	require.Equal(t, 16, size) // 8-byte pointer + 8-byte struct{c,i}, no extra padding needed
}

func TestTypeManagerUnionSizeIsLargestField(t *testing.T) {
	tm := NewTypeManager(sampleModel(), 8)

	size, align, err := tm.Info("4")
	require.NoError(t, err)
	require.Equal(t, 8, size) // q dominates b
	require.Equal(t, 8, align)

	d, err := tm.ClassFor("4")
	require.NoError(t, err)
	idx, err := tm.LargestField(d)
	require.NoError(t, err)
	require.Equal(t, 1, idx) // "q" is the larger field
}

func TestTypeManagerUnknownUserType(t *testing.T) {
	tm := NewTypeManager(sampleModel(), 8)
	_, _, err := tm.Info("999")
	require.Error(t, err)
	var unk *UnknownTypeError
	require.ErrorAs(t, err, &unk)
}
