// Package monitor drives one replay of a captured Trace against an
// isolated Harness process, classifying the outcome as a crash, a
// hang, or a clean finish, and persisting artifacts for the former
// two.
package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/dbhaskaran1/morpher/internal/ipc"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/sirupsen/logrus"
)

// HarnessProcess is a running Harness worker, connected to the
// Monitor over a typed duplex channel.
type HarnessProcess interface {
	PID() int
	Pings() <-chan ipc.Ping
	Kill() error
	Wait() error
}

// HarnessSpawner starts a Harness worker pre-loaded with trace and
// wired to a fresh ipc channel.
type HarnessSpawner interface {
	Spawn(trace *memtrace.Trace) (HarnessProcess, error)
}

// Config mirrors the fuzzer.timeout and directories.data configuration
// keys relevant to artifact persistence.
type Config struct {
	Timeout  time.Duration
	CrashDir string
	HangDir  string
}

// Monitor is a per-trace replay controller.
type Monitor struct {
	Cfg     Config
	Dbg     debugger.Debugger
	Spawner HarnessSpawner
	Log     *logrus.Entry

	iterations map[string]int
}

func NewMonitor(cfg Config, dbg debugger.Debugger, spawner HarnessSpawner) *Monitor {
	return &Monitor{Cfg: cfg, Dbg: dbg, Spawner: spawner, iterations: make(map[string]int)}
}

func (m *Monitor) logger() *logrus.Entry {
	if m.Log != nil {
		return m.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Bootstrap creates cfg's hang/crash directories if absent, or clears
// their prior contents if present: "address-*" subdirectories under
// crashDir, and "trace-*.txt"/"trace-*.bin" files under hangDir. It
// never touches the traces directory.
func Bootstrap(cfg Config) error {
	if err := resetDir(cfg.HangDir, func(name string) bool {
		return strings.HasPrefix(name, "trace-") && (strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".bin"))
	}, false); err != nil {
		return fmt.Errorf("monitor: bootstrapping hang dir: %w", err)
	}
	if err := resetDir(cfg.CrashDir, func(name string) bool {
		return strings.HasPrefix(name, "address-")
	}, true); err != nil {
		return fmt.Errorf("monitor: bootstrapping crash dir: %w", err)
	}
	return nil
}

func resetDir(dir string, matches func(name string) bool, dirsOnly bool) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if dirsOnly != e.IsDir() || !matches(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Run spawns a Harness connected over a duplex channel (the Spawner
// hands it trace while spawning), attaches the debugger, and runs the
// debugger loop under a one-shot timeout. batchID identifies the original stored Trace this replay
// belongs to (shared across repeated mutated replays of the same
// capture); the per-batch iteration counter feeds persisted artifact
// filenames.
func (m *Monitor) Run(batchID string, trace *memtrace.Trace) error {
	proc, err := m.Spawner.Spawn(trace)
	if err != nil {
		return fmt.Errorf("monitor: spawning harness: %w", err)
	}
	defer func() {
		if err := proc.Wait(); err != nil {
			m.logger().WithError(err).Debug("monitor: harness exited")
		}
	}()

	if err := m.Dbg.Attach(context.Background(), proc.PID()); err != nil {
		proc.Kill()
		return fmt.Errorf("monitor: attaching to harness pid %d: %w", proc.PID(), err)
	}

	var pingCount atomic.Int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range proc.Pings() {
			pingCount.Add(1)
		}
	}()

	iter := m.iterations[batchID]
	m.iterations[batchID] = iter + 1

	var timedOut atomic.Bool
	crashed := false
	m.Dbg.OnAccessViolation(func(d debugger.Debugger) (bool, error) {
		crashed = true
		m.onCrash(d, batchID, iter, trace, int(pingCount.Load()))
		return false, nil
	})
	m.Dbg.OnPeriodicTick(func(d debugger.Debugger) error {
		if timedOut.CompareAndSwap(true, false) && !crashed {
			m.onHang(batchID, iter, trace, int(pingCount.Load()))
			return d.TerminateProcess()
		}
		return nil
	})

	timer := time.AfterFunc(m.Cfg.Timeout, func() { timedOut.Store(true) })
	runErr := m.Dbg.Run()
	timer.Stop()
	<-done

	if runErr != nil {
		return fmt.Errorf("monitor: running debugger loop: %w", runErr)
	}
	return nil
}

func (m *Monitor) onCrash(dbg debugger.Debugger, batchID string, iter int, trace *memtrace.Trace, invoked int) {
	regs, err := dbg.Registers()
	addr := int64(0)
	if err == nil {
		addr = regs.InstructionPointer
	}
	m.logger().Warnf("monitor: crash at %#x, binning under %s", addr, m.Cfg.CrashDir)

	dir := filepath.Join(m.Cfg.CrashDir, fmt.Sprintf("address-%#x", addr))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.logger().WithError(err).Error("monitor: creating crash bin directory")
		return
	}
	synopsis := fmt.Sprintf("crash at instruction pointer %#x, batch %s run %d\n", addr, batchID, iter)
	m.persist(dir, batchID, iter, trace, invoked, synopsis)
	if err := dbg.TerminateProcess(); err != nil {
		m.logger().WithError(err).Warn("monitor: terminating crashed harness")
	}
}

func (m *Monitor) onHang(batchID string, iter int, trace *memtrace.Trace, invoked int) {
	m.logger().Warnf("monitor: harness timed out, batch %s run %d", batchID, iter)
	if err := os.MkdirAll(m.Cfg.HangDir, 0o755); err != nil {
		m.logger().WithError(err).Error("monitor: creating hang directory")
		return
	}
	m.persist(m.Cfg.HangDir, batchID, iter, trace, invoked, "")
}

// persist writes the two artifacts for a failed replay: a text dump
// (optional synopsis plus the invoked snapshots) and the full
// serialized trace. The dump only reads the trace's Memory; calling
// Replay here would patch the parent's live copy and corrupt both
// the .bin artifact and any later replay of the same trace.
func (m *Monitor) persist(dir, batchID string, iter int, trace *memtrace.Trace, invoked int, synopsis string) {
	base := fmt.Sprintf("trace-%s-run-%d", batchID, iter)

	var b strings.Builder
	b.WriteString(synopsis)
	for i, snap := range trace.Snapshots {
		if i >= invoked {
			break
		}
		fmt.Fprintf(&b, "%s(", snap.FunctionName)
		for j, tag := range snap.ArgTags {
			if j > 0 {
				b.WriteString(", ")
			}
			size, _, err := trace.TypeManager.Info(tag.Code)
			if err != nil {
				fmt.Fprintf(&b, "%s@%#x=<%s>", tag.Code, tag.Addr, err)
				continue
			}
			raw, err := snap.Memory.Read(tag.Addr, int64(size))
			if err != nil {
				fmt.Fprintf(&b, "%s@%#x=<uncaptured>", tag.Code, tag.Addr)
				continue
			}
			fmt.Fprintf(&b, "%s@%#x=%x", tag.Code, tag.Addr, raw)
		}
		b.WriteString(")\n")
	}
	txtPath := filepath.Join(dir, base+".txt")
	if err := os.WriteFile(txtPath, []byte(b.String()), 0o644); err != nil {
		m.logger().WithError(err).Error("monitor: writing text dump")
	}

	binPath := filepath.Join(dir, base+".bin")
	if err := memtrace.SaveTrace(binPath, trace); err != nil {
		m.logger().WithError(err).Error("monitor: writing serialized trace")
	}
}
