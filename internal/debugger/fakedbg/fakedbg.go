// Package fakedbg is an in-process double for internal/debugger's
// Debugger interface, used by the capture and monitor test suites so
// their control flow is exercisable without a real OS debugger.
package fakedbg

import (
	"context"
	"fmt"

	"github.com/dbhaskaran1/morpher/internal/debugger"
)

type breakpoint struct {
	description string
	handler     debugger.BreakpointHandler
}

// Fake is a scripted Debugger: a test arranges memory and registers,
// then supplies a Script that drives the callbacks in whatever order
// it wants to simulate a debuggee run.
type Fake struct {
	Mem  map[int64]byte
	Regs debugger.Registers

	// Resolved maps "libraryPath!name" to an address, consulted by
	// Resolve. Unset entries fail resolution.
	Resolved map[string]int64

	Script func(d *Fake) error

	breakpoints   map[int64]breakpoint
	libLoaded     debugger.LibraryLoadedHandler
	avHandler     debugger.AccessViolationHandler
	tick          debugger.PeriodicTickHandler
	terminated    bool
	terminateSeen int
}

func New() *Fake {
	return &Fake{Mem: make(map[int64]byte), breakpoints: make(map[int64]breakpoint)}
}

func (f *Fake) WriteMemory(addr int64, data []byte) {
	for i, b := range data {
		f.Mem[addr+int64(i)] = b
	}
}

func (f *Fake) Load(ctx context.Context, exe string, cmdline []string, newConsole, showWindow bool) error {
	return nil
}

func (f *Fake) Attach(ctx context.Context, pid int) error { return nil }

func (f *Fake) Registers() (debugger.Registers, error) { return f.Regs, nil }

func (f *Fake) ReadMemory(addr, n int64) ([]byte, error) {
	out := make([]byte, n)
	for i := int64(0); i < n; i++ {
		b, ok := f.Mem[addr+i]
		if !ok {
			return nil, fmt.Errorf("fakedbg: unmapped address %#x", addr+i)
		}
		out[i] = b
	}
	return out, nil
}

func (f *Fake) Resolve(libraryPath, name string) (int64, error) {
	if addr, ok := f.Resolved[libraryPath+"!"+name]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("fakedbg: Resolve not configured for %s!%s", libraryPath, name)
}

func (f *Fake) SetBreakpoint(address int64, description string, handler debugger.BreakpointHandler) error {
	f.breakpoints[address] = breakpoint{description, handler}
	return nil
}

func (f *Fake) OnLibraryLoaded(h debugger.LibraryLoadedHandler)     { f.libLoaded = h }
func (f *Fake) OnAccessViolation(h debugger.AccessViolationHandler) { f.avHandler = h }
func (f *Fake) OnPeriodicTick(h debugger.PeriodicTickHandler)       { f.tick = h }

func (f *Fake) Run() error {
	if f.Script == nil {
		return nil
	}
	return f.Script(f)
}

func (f *Fake) TerminateProcess() error {
	f.terminated = true
	f.terminateSeen++
	return nil
}

func (f *Fake) Terminated() bool { return f.terminated }

// FireLibraryLoaded invokes the registered library-loaded callback,
// a no-op if none was installed.
func (f *Fake) FireLibraryLoaded(libraryPath string) error {
	if f.libLoaded == nil {
		return nil
	}
	return f.libLoaded(f, libraryPath)
}

// FireBreakpoint invokes the handler installed at address, if any.
func (f *Fake) FireBreakpoint(address int64) error {
	bp, ok := f.breakpoints[address]
	if !ok {
		return fmt.Errorf("fakedbg: no breakpoint at %#x", address)
	}
	return bp.handler(f, bp.description)
}

// FireTick invokes the registered periodic-tick callback.
func (f *Fake) FireTick() error {
	if f.tick == nil {
		return nil
	}
	return f.tick(f)
}

// FireAccessViolation invokes the registered access-violation
// callback and returns its disposition.
func (f *Fake) FireAccessViolation() (handled bool, err error) {
	if f.avHandler == nil {
		return false, nil
	}
	return f.avHandler(f)
}
