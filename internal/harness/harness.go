package harness

import (
	"fmt"
	"os"

	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Pinger carries the per-call progress signal back to the monitor.
// Satisfied by ipc.HarnessConn; tests substitute an in-process fake.
type Pinger interface {
	Ping(index int) error
}

// Harness is the process-isolated replayer spawned by a Monitor. It
// loads the target library, then for each call Trace.Replay yields it
// pings the outgoing channel before invoking the resolved symbol.
// The Monitor counts pings to pinpoint which call a later crash or
// hang belongs to.
type Harness struct {
	Linker        Linker
	TargetLibrary string
	Convention    CallingConvention
	Log           *logrus.Entry
}

func (h *Harness) logger() *logrus.Entry {
	if h.Log != nil {
		return h.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Run loads the target library, redirects its standard streams to
// the null device, and replays trace in capture order, pinging once
// per call before invoking it. Run returns after the trace is
// exhausted; the caller is responsible for killing the process if
// replay must stop early.
func (h *Harness) Run(trace *memtrace.Trace, pings Pinger) error {
	restore, err := redirectStdToNull()
	if err != nil {
		return fmt.Errorf("harness: redirecting stdio: %w", err)
	}
	defer restore()

	lib, err := h.Linker.Load(h.TargetLibrary)
	if err != nil {
		return fmt.Errorf("harness: loading %s: %w", h.TargetLibrary, err)
	}
	defer lib.Close()

	iter := trace.Replay()
	index := 0
	for {
		call, ok, err := iter.Next()
		if err != nil {
			return fmt.Errorf("harness: materializing call %d: %w", index, err)
		}
		if !ok {
			return nil
		}

		if err := pings.Ping(index); err != nil {
			return fmt.Errorf("harness: pinging call %d: %w", index, err)
		}

		symbol, err := h.Linker.Lookup(lib, call.FunctionName, h.Convention)
		if err != nil {
			h.logger().WithError(err).Warnf("harness: no symbol for %s, skipping", call.FunctionName)
			index++
			continue
		}
		ret, err := symbol.Call(call.Args)
		if err != nil {
			h.logger().WithError(err).Warnf("harness: call to %s failed", call.FunctionName)
		} else {
			h.logger().WithField("return", ret.Raw).Debugf("harness: %s returned", call.FunctionName)
		}
		index++
	}
}

// redirectStdToNull duplicates the null device onto stdout and
// stderr so library-emitted text is discarded; until restore runs,
// the harness's own log output on stderr is discarded too. The ping
// channel uses its own descriptor and is unaffected. It returns a
// function that restores the original file descriptors.
func redirectStdToNull() (func(), error) {
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	defer devNull.Close()

	savedOut, err := unix.Dup(1)
	if err != nil {
		return nil, err
	}
	savedErr, err := unix.Dup(2)
	if err != nil {
		unix.Close(savedOut)
		return nil, err
	}

	fd := int(devNull.Fd())
	if err := unix.Dup2(fd, 1); err != nil {
		unix.Close(savedOut)
		unix.Close(savedErr)
		return nil, err
	}
	if err := unix.Dup2(fd, 2); err != nil {
		unix.Close(savedOut)
		unix.Close(savedErr)
		return nil, err
	}

	return func() {
		unix.Dup2(savedOut, 1)
		unix.Dup2(savedErr, 2)
		unix.Close(savedOut)
		unix.Close(savedErr)
	}, nil
}
