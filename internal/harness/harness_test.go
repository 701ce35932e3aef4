package harness

import (
	"testing"

	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct{ closed bool }

func (l *fakeLibrary) Close() error { l.closed = true; return nil }

type fakeCallable struct {
	name  string
	calls *[]string
}

func (c fakeCallable) Call(args []memtrace.Object) (ReturnValue, error) {
	*c.calls = append(*c.calls, c.name)
	return ReturnValue{Raw: []byte{0}}, nil
}

type fakeLinker struct {
	lib   *fakeLibrary
	calls []string
}

func (l *fakeLinker) Load(path string) (Library, error) {
	l.lib = &fakeLibrary{}
	return l.lib, nil
}

func (l *fakeLinker) Lookup(lib Library, name string, convention CallingConvention) (Callable, error) {
	return fakeCallable{name: name, calls: &l.calls}, nil
}

func newTestTrace() *memtrace.Trace {
	mem, _ := memtrace.NewMemory(nil)
	s1 := memtrace.NewSnapshot("Alpha", mem)
	s2 := memtrace.NewSnapshot("Beta", mem)
	return &memtrace.Trace{Snapshots: []*memtrace.Snapshot{s1, s2}, TypeManager: memtrace.NewTypeManager(nil, 8)}
}

type recordingPinger struct {
	indexes []int
}

func (p *recordingPinger) Ping(index int) error {
	p.indexes = append(p.indexes, index)
	return nil
}

func TestHarnessRunPingsAndCallsEachSnapshot(t *testing.T) {
	linker := &fakeLinker{}
	h := &Harness{Linker: linker, TargetLibrary: "libtarget.so"}

	pings := &recordingPinger{}
	err := h.Run(newTestTrace(), pings)
	require.NoError(t, err)

	require.Equal(t, []int{0, 1}, pings.indexes)
	require.Equal(t, []string{"Alpha", "Beta"}, linker.calls)
	require.True(t, linker.lib.closed)
}
