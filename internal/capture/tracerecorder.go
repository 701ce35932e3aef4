package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/dbhaskaran1/morpher/internal/model"
	"github.com/sirupsen/logrus"
)

// Config controls one TraceRecorder, mirroring the collector.*
// configuration keys.
type Config struct {
	TargetLibrary string
	Timeout       time.Duration
	CopyLimit     int
	GlobalLimit   bool
	StackAlign    int
	WordSize      int
}

// TraceRecorder orchestrates a single host-program execution under a
// debugger, capturing one Snapshot per monitored call up to the
// configured copy limits.
type TraceRecorder struct {
	Cfg   Config
	Model *model.Model
	Dbg   debugger.Debugger
	Log   *logrus.Entry

	copyCounts map[string]int
}

// NewTraceRecorder builds a TraceRecorder. dbg is the (possibly
// fake) debugger handle to drive for every Record call.
func NewTraceRecorder(cfg Config, m *model.Model, dbg debugger.Debugger) *TraceRecorder {
	return &TraceRecorder{Cfg: cfg, Model: m, Dbg: dbg}
}

func (r *TraceRecorder) logger() *logrus.Entry {
	if r.Log != nil {
		return r.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Record runs exe under the debugger, sets breakpoints on every
// model function once the target library loads, and captures one
// Snapshot per breakpoint hit within copy_limit/global_limit. It
// returns (nil, nil) if the run produced no snapshots at all, per
// the "no trace" outcome of an all-skip or all-fail run.
func (r *TraceRecorder) Record(ctx context.Context, exe string, args []string) (*memtrace.Trace, error) {
	if !r.Cfg.GlobalLimit || r.copyCounts == nil {
		r.copyCounts = make(map[string]int)
	}

	tm := memtrace.NewTypeManager(r.Model, r.Cfg.WordSize)
	fr := NewFuncRecorder(r.Model, tm, r.Cfg.StackAlign, r.Cfg.WordSize)

	var snapshots []*memtrace.Snapshot

	r.Dbg.OnLibraryLoaded(func(d debugger.Debugger, libraryPath string) error {
		if filepath.Base(libraryPath) != filepath.Base(r.Cfg.TargetLibrary) {
			return nil
		}
		for _, fn := range r.Model.Functions {
			name := fn.Name
			addr, err := d.Resolve(r.Cfg.TargetLibrary, name)
			if err != nil {
				// The model disagrees with the binary: fatal.
				return fmt.Errorf("capture: resolving %s in %s: %w", name, r.Cfg.TargetLibrary, err)
			}
			if _, ok := r.copyCounts[name]; !ok {
				r.copyCounts[name] = 0
			}
			err = d.SetBreakpoint(addr, name, func(d debugger.Debugger, description string) error {
				if r.copyCounts[description] >= r.Cfg.CopyLimit {
					return nil
				}
				snap, err := fr.Record(d, description)
				if err != nil {
					r.logger().WithError(err).Warnf("capture: dropping capture of %s", description)
					return nil
				}
				snapshots = append(snapshots, snap)
				r.copyCounts[description]++
				return nil
			})
			if err != nil {
				r.logger().WithError(err).Warnf("capture: could not set breakpoint on %s, skipping", name)
			}
		}
		return nil
	})

	var timedOut atomic.Bool
	r.Dbg.OnPeriodicTick(func(d debugger.Debugger) error {
		if timedOut.CompareAndSwap(true, false) {
			return d.TerminateProcess()
		}
		return nil
	})

	if err := r.Dbg.Load(ctx, exe, args, true, false); err != nil {
		return nil, fmt.Errorf("capture: loading %s: %w", exe, err)
	}

	timer := time.AfterFunc(r.Cfg.Timeout, func() { timedOut.Store(true) })
	runErr := r.Dbg.Run()
	timer.Stop()

	if runErr != nil {
		return nil, fmt.Errorf("capture: running %s: %w", exe, runErr)
	}

	if len(snapshots) == 0 {
		return nil, nil
	}
	return &memtrace.Trace{Snapshots: snapshots, TypeManager: tm}, nil
}
