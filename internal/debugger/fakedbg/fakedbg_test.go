package fakedbg

import (
	"testing"

	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/stretchr/testify/require"
)

func TestReadMemoryRoundTrip(t *testing.T) {
	f := New()
	f.WriteMemory(0x1000, []byte{1, 2, 3, 4})

	got, err := f.ReadMemory(0x1000, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got)

	_, err = f.ReadMemory(0x2000, 1)
	require.Error(t, err)
}

func TestBreakpointFires(t *testing.T) {
	f := New()
	var gotDesc string
	require.NoError(t, f.SetBreakpoint(0x400000, "foo", func(d debugger.Debugger, description string) error {
		gotDesc = description
		return nil
	}))

	require.NoError(t, f.FireBreakpoint(0x400000))
	require.Equal(t, "foo", gotDesc)

	require.Error(t, f.FireBreakpoint(0x401000))
}

func TestScriptDrivesRun(t *testing.T) {
	f := New()
	var loaded string
	f.OnLibraryLoaded(func(d debugger.Debugger, libraryPath string) error {
		loaded = libraryPath
		return nil
	})
	f.Script = func(d *Fake) error {
		return d.FireLibraryLoaded("target.so")
	}

	require.NoError(t, f.Run())
	require.Equal(t, "target.so", loaded)
}

func TestTerminateProcess(t *testing.T) {
	f := New()
	require.False(t, f.Terminated())
	require.NoError(t, f.TerminateProcess())
	require.True(t, f.Terminated())
}
