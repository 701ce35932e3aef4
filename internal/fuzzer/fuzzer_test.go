package fuzzer

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/dbhaskaran1/morpher/internal/generator"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/dbhaskaran1/morpher/internal/report"
	"github.com/stretchr/testify/require"
)

type countingMonitor struct {
	calls int
	run   func()
}

func (m *countingMonitor) Run(batchID string, trace *memtrace.Trace) error {
	m.calls++
	if m.run != nil {
		m.run()
	}
	return nil
}

func oneIntTagTrace(t *testing.T, value int64) (*memtrace.Trace, *memtrace.Snapshot) {
	block, err := memtrace.NewBlock(0x1000, make([]byte, 16))
	require.NoError(t, err)
	mem, err := memtrace.NewMemory([]*memtrace.Block{block})
	require.NoError(t, err)
	require.NoError(t, mem.WriteAs(0x1000, memtrace.IntValue(memtrace.KindInt32, value), 4, binary.NativeEndian))

	snap := memtrace.NewSnapshot("Widget", mem)
	tm := memtrace.NewTypeManager(nil, 8)
	require.NoError(t, snap.AddTag(tm, memtrace.Tag{Addr: 0x1000, Code: "i"}))

	return &memtrace.Trace{Snapshots: []*memtrace.Snapshot{snap}, TypeManager: tm}, snap
}

func basicGeneratorConfig() generator.Config {
	return generator.Config{Mutational: true, MutateRange: 2, PointerSize: 8}
}

func TestFuzzerSequentialSequentialCallCountAndRestore(t *testing.T) {
	trace, snap := oneIntTagTrace(t, 7)
	cfg := Config{SnapshotMode: Sequential, TraceMode: Sequential, Generator: basicGeneratorConfig()}

	orig := memtrace.IntValue(memtrace.KindInt32, 7)
	want, err := generator.Generate(cfg.Generator, "i", orig)
	require.NoError(t, err)
	require.NotEmpty(t, want)

	mon := &countingMonitor{}
	f := &Fuzzer{Cfg: cfg, Monitor: mon, Report: report.NewDumb(io.Discard)}
	require.NoError(t, f.fuzzTrace(f.Report, "batch-1", trace))

	require.Equal(t, len(want), mon.calls)

	got, err := snap.Memory.ReadAs(0x1000, memtrace.KindInt32, 4, binary.NativeEndian)
	require.NoError(t, err)
	require.True(t, got.Equal(orig), "tag value must be restored after fuzzing completes")
}

func TestFuzzerSimultaneousSnapshotModeOneCallPerRound(t *testing.T) {
	block, err := memtrace.NewBlock(0x2000, make([]byte, 16))
	require.NoError(t, err)
	mem, err := memtrace.NewMemory([]*memtrace.Block{block})
	require.NoError(t, err)
	require.NoError(t, mem.WriteAs(0x2000, memtrace.IntValue(memtrace.KindInt32, 1), 4, binary.NativeEndian))
	require.NoError(t, mem.WriteAs(0x2008, memtrace.IntValue(memtrace.KindInt32, 2), 4, binary.NativeEndian))

	snap := memtrace.NewSnapshot("Pair", mem)
	tm := memtrace.NewTypeManager(nil, 8)
	require.NoError(t, snap.AddTag(tm, memtrace.Tag{Addr: 0x2000, Code: "i"}))
	require.NoError(t, snap.AddTag(tm, memtrace.Tag{Addr: 0x2008, Code: "i"}))
	trace := &memtrace.Trace{Snapshots: []*memtrace.Snapshot{snap}, TypeManager: tm}

	cfg := Config{SnapshotMode: Simultaneous, TraceMode: Sequential, Generator: basicGeneratorConfig()}
	mon := &countingMonitor{}
	f := &Fuzzer{Cfg: cfg, Monitor: mon, Report: report.NewDumb(io.Discard)}
	require.NoError(t, f.fuzzTrace(f.Report, "batch-2", trace))

	c1, _ := generator.Generate(cfg.Generator, "i", memtrace.IntValue(memtrace.KindInt32, 1))
	c2, _ := generator.Generate(cfg.Generator, "i", memtrace.IntValue(memtrace.KindInt32, 2))
	maxLen := len(c1)
	if len(c2) > maxLen {
		maxLen = len(c2)
	}
	require.Equal(t, maxLen, mon.calls)

	v1, err := snap.Memory.ReadAs(0x2000, memtrace.KindInt32, 4, binary.NativeEndian)
	require.NoError(t, err)
	require.True(t, v1.Equal(memtrace.IntValue(memtrace.KindInt32, 1)))
	v2, err := snap.Memory.ReadAs(0x2008, memtrace.KindInt32, 4, binary.NativeEndian)
	require.NoError(t, err)
	require.True(t, v2.Equal(memtrace.IntValue(memtrace.KindInt32, 2)))
}

func TestFuzzerSimultaneousTraceModeInterleavesSnapshots(t *testing.T) {
	tm := memtrace.NewTypeManager(nil, 8)

	blockA, err := memtrace.NewBlock(0x3000, make([]byte, 16))
	require.NoError(t, err)
	memA, err := memtrace.NewMemory([]*memtrace.Block{blockA})
	require.NoError(t, err)
	require.NoError(t, memA.WriteAs(0x3000, memtrace.IntValue(memtrace.KindInt32, 10), 4, binary.NativeEndian))
	snapA := memtrace.NewSnapshot("First", memA)
	require.NoError(t, snapA.AddTag(tm, memtrace.Tag{Addr: 0x3000, Code: "i"}))

	blockB, err := memtrace.NewBlock(0x4000, make([]byte, 16))
	require.NoError(t, err)
	memB, err := memtrace.NewMemory([]*memtrace.Block{blockB})
	require.NoError(t, err)
	require.NoError(t, memB.WriteAs(0x4000, memtrace.IntValue(memtrace.KindInt32, 20), 4, binary.NativeEndian))
	snapB := memtrace.NewSnapshot("Second", memB)
	require.NoError(t, snapB.AddTag(tm, memtrace.Tag{Addr: 0x4000, Code: "i"}))

	trace := &memtrace.Trace{Snapshots: []*memtrace.Snapshot{snapA, snapB}, TypeManager: tm}

	cfg := Config{SnapshotMode: Sequential, TraceMode: Simultaneous, Generator: basicGeneratorConfig()}
	mon := &countingMonitor{}
	f := &Fuzzer{Cfg: cfg, Monitor: mon, Report: report.NewDumb(io.Discard)}
	require.NoError(t, f.fuzzTrace(f.Report, "batch-3", trace))

	wantA, _ := generator.Generate(cfg.Generator, "i", memtrace.IntValue(memtrace.KindInt32, 10))
	wantB, _ := generator.Generate(cfg.Generator, "i", memtrace.IntValue(memtrace.KindInt32, 20))
	require.Equal(t, len(wantA)+len(wantB), mon.calls)

	gotA, err := snapA.Memory.ReadAs(0x3000, memtrace.KindInt32, 4, binary.NativeEndian)
	require.NoError(t, err)
	require.True(t, gotA.Equal(memtrace.IntValue(memtrace.KindInt32, 10)))
	gotB, err := snapB.Memory.ReadAs(0x4000, memtrace.KindInt32, 4, binary.NativeEndian)
	require.NoError(t, err)
	require.True(t, gotB.Equal(memtrace.IntValue(memtrace.KindInt32, 20)))
}
