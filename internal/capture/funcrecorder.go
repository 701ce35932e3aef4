package capture

import (
	"encoding/binary"
	"fmt"

	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/dbhaskaran1/morpher/internal/model"
)

// FuncRecorder captures one function call's Snapshot at a breakpoint.
type FuncRecorder struct {
	Model       *model.Model
	TypeManager *memtrace.TypeManager
	StackAlign  int
	WordSize    int
	Order       binary.ByteOrder
}

// NewFuncRecorder builds a FuncRecorder over m, sharing tm with the
// rest of the recorded Trace.
func NewFuncRecorder(m *model.Model, tm *memtrace.TypeManager, stackAlign, wordSize int) *FuncRecorder {
	return &FuncRecorder{
		Model:       m,
		TypeManager: tm,
		StackAlign:  stackAlign,
		WordSize:    wordSize,
		Order:       binary.NativeEndian,
	}
}

// Record is invoked at a function-entry breakpoint: it skips the
// return address on the stack, tags every reachable argument object
// by walking the stack per the model's parameter list, and asks a
// snapshotManager to materialize the resulting Snapshot.
func (r *FuncRecorder) Record(dbg debugger.Debugger, functionName string) (*memtrace.Snapshot, error) {
	fn, ok := r.Model.FunctionByName(functionName)
	if !ok {
		return nil, fmt.Errorf("capture: no model entry for function %q", functionName)
	}
	regs, err := dbg.Registers()
	if err != nil {
		return nil, fmt.Errorf("capture: reading registers: %w", err)
	}
	startAddr := regs.StackPointer + int64(r.WordSize)

	sm := newSnapshotManager(dbg, functionName, r.TypeManager, r.Order)
	w := &tagWalker{dbg: dbg, tm: r.TypeManager, sm: sm, order: r.Order, wordSize: r.WordSize}
	if err := w.tagArgs(startAddr, r.StackAlign, fn); err != nil {
		return nil, err
	}
	return sm.snapshot()
}

// tagWalker implements the recursive "tag" operation shared by
// tagArgs and struct/union/pointer descent.
type tagWalker struct {
	dbg      debugger.Debugger
	tm       *memtrace.TypeManager
	sm       *snapshotManager
	order    binary.ByteOrder
	wordSize int
}

// align64 rounds addr up to the next multiple of alignment. Stack
// addresses are 64-bit regardless of the target's type-layout
// alignments, so this mirrors memtrace.Align over int64 rather than
// reusing it directly.
func align64(addr int64, alignment int) int64 {
	if alignment <= 1 {
		return addr
	}
	a := int64(alignment)
	return (addr + a - 1) &^ (a - 1)
}

// tagArgs walks the stack parameters of fn in order. Arguments can't
// be relied on to be aligned to their type's natural alignment, only
// to the platform's stack alignment requirement.
func (w *tagWalker) tagArgs(addr int64, stackAlign int, fn model.Function) error {
	cur := addr
	for _, paramType := range fn.Params {
		cur = align64(cur, stackAlign)
		if err := w.tag(cur, paramType); err != nil {
			return err
		}
		w.sm.addArg(cur, memtrace.LeadingCode(paramType))

		size, _, err := w.tm.Info(paramType)
		if err != nil {
			return err
		}
		cur += int64(size)
	}
	return nil
}

// tag is the core recursive walker: given an address and a type code
// (user-type decimal id, or primitive/pointer), tags the object for
// collection and recurses into member objects or pointees.
func (w *tagWalker) tag(addr int64, code string) error {
	if _, ok := memtrace.UserTypeID(code); ok {
		return w.tagUserType(addr, code)
	}
	return w.tagPrimitive(addr, code)
}

func (w *tagWalker) tagUserType(addr int64, code string) error {
	if w.sm.checkObject(addr, code) {
		return nil
	}
	size, _, err := w.tm.Info(code)
	if err != nil {
		return err
	}
	w.sm.addObject(addr, size, code)

	d, err := w.tm.ClassFor(code)
	if err != nil {
		return err
	}
	if d.UserKind == "union" {
		// Union: the captured bytes must satisfy every interpretation,
		// so every field is tagged at the same address.
		for _, f := range d.Fields {
			if err := w.tag(addr, f.Code); err != nil {
				return err
			}
		}
		return nil
	}
	for _, f := range d.Fields {
		if err := w.tag(addr+int64(f.Offset), f.Code); err != nil {
			return err
		}
	}
	return nil
}

func (w *tagWalker) tagPrimitive(addr int64, code string) error {
	basic := memtrace.LeadingCode(code)
	if !w.sm.checkObject(addr, basic) {
		size, _, err := w.tm.Info(basic)
		if err != nil {
			return err
		}
		w.sm.addObject(addr, size, basic)
	}

	pointee, typed := memtrace.PointeeCode(code)
	if !typed {
		// A plain opaque "P" (or a non-pointer primitive) is never
		// followed.
		return nil
	}

	raw, err := w.dbg.ReadMemory(addr, int64(w.wordSize))
	if err != nil {
		// This argument is unrecoverable; the snapshot will silently
		// discard the range it would have covered.
		return nil
	}
	pv, err := memtrace.DecodeValue(raw, memtrace.KindPointer, w.wordSize, w.order)
	if err != nil {
		return nil
	}
	paddr := int64(pv.Uint)

	pointeeSize, _, err := w.tm.Info(pointee)
	if err != nil {
		return err
	}
	if _, err := w.dbg.ReadMemory(paddr, int64(pointeeSize)); err != nil {
		// Null, kernel, or otherwise unmapped: don't tag the pointee.
		return nil
	}
	return w.tag(paddr, pointee)
}
