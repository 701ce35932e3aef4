package capture

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/dbhaskaran1/morpher/internal/debugger/fakedbg"
	"github.com/dbhaskaran1/morpher/internal/model"
	"github.com/stretchr/testify/require"
)

func TestTraceRecorderCapturesOneSnapshotPerBreakpoint(t *testing.T) {
	m := &model.Model{
		Functions: []model.Function{{Name: "Foo", Params: []string{"i"}}},
		UserTypes: map[int]model.UserType{},
	}

	f := fakedbg.New()
	f.Regs = debugger.Registers{StackPointer: 0x7000}
	f.Resolved = map[string]int64{"libtarget.so!Foo": 0x401000}
	argBytes := make([]byte, 4)
	binary.NativeEndian.PutUint32(argBytes, 42)
	f.WriteMemory(0x7008, argBytes)

	f.Script = func(fk *fakedbg.Fake) error {
		if err := fk.FireLibraryLoaded("libtarget.so"); err != nil {
			return err
		}
		return fk.FireBreakpoint(0x401000)
	}

	cfg := Config{
		TargetLibrary: "libtarget.so",
		Timeout:       time.Second,
		CopyLimit:     10,
		WordSize:      8,
		StackAlign:    8,
	}
	rec := NewTraceRecorder(cfg, m, f)

	trace, err := rec.Record(context.Background(), "host.exe", nil)
	require.NoError(t, err)
	require.NotNil(t, trace)
	require.Len(t, trace.Snapshots, 1)
	require.Equal(t, "Foo", trace.Snapshots[0].FunctionName)
}

func TestTraceRecorderEnforcesCopyLimit(t *testing.T) {
	m := &model.Model{
		Functions: []model.Function{{Name: "Foo", Params: []string{"i"}}},
		UserTypes: map[int]model.UserType{},
	}

	f := fakedbg.New()
	f.Regs = debugger.Registers{StackPointer: 0x7000}
	f.Resolved = map[string]int64{"libtarget.so!Foo": 0x401000}
	argBytes := make([]byte, 4)
	binary.NativeEndian.PutUint32(argBytes, 1)
	f.WriteMemory(0x7008, argBytes)

	calls := 0
	f.Script = func(fk *fakedbg.Fake) error {
		if err := fk.FireLibraryLoaded("libtarget.so"); err != nil {
			return err
		}
		for i := 0; i < 5; i++ {
			calls++
			if err := fk.FireBreakpoint(0x401000); err != nil {
				return err
			}
		}
		return nil
	}

	cfg := Config{
		TargetLibrary: "libtarget.so",
		Timeout:       time.Second,
		CopyLimit:     2,
		WordSize:      8,
		StackAlign:    8,
	}
	rec := NewTraceRecorder(cfg, m, f)

	trace, err := rec.Record(context.Background(), "host.exe", nil)
	require.NoError(t, err)
	require.Equal(t, 5, calls)
	require.Len(t, trace.Snapshots, 2)
}

func TestTraceRecorderNoSnapshotsReturnsNilTrace(t *testing.T) {
	m := &model.Model{
		Functions: []model.Function{{Name: "Foo", Params: []string{"i"}}},
		UserTypes: map[int]model.UserType{},
	}

	f := fakedbg.New()
	f.Script = func(fk *fakedbg.Fake) error { return nil }

	cfg := Config{TargetLibrary: "libtarget.so", Timeout: time.Second, CopyLimit: 10, WordSize: 8, StackAlign: 8}
	rec := NewTraceRecorder(cfg, m, f)

	trace, err := rec.Record(context.Background(), "host.exe", nil)
	require.NoError(t, err)
	require.Nil(t, trace)
}

func TestTraceRecorderResolutionFailureIsFatal(t *testing.T) {
	m := &model.Model{
		Functions: []model.Function{{Name: "Unresolved", Params: nil}},
		UserTypes: map[int]model.UserType{},
	}

	f := fakedbg.New()
	f.Script = func(fk *fakedbg.Fake) error {
		return fk.FireLibraryLoaded("libtarget.so")
	}

	cfg := Config{TargetLibrary: "libtarget.so", Timeout: time.Second, CopyLimit: 10, WordSize: 8, StackAlign: 8}
	rec := NewTraceRecorder(cfg, m, f)

	_, err := rec.Record(context.Background(), "host.exe", nil)
	require.Error(t, err)
}
