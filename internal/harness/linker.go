// Package harness replays a captured Trace against the target
// library inside its own OS process, isolating the engine from
// whatever the library's code does to the process it runs in.
package harness

import (
	"errors"

	"github.com/dbhaskaran1/morpher/internal/memtrace"
)

// CallingConvention selects the C ABI used to invoke a resolved
// symbol, per the fuzzer.dll_type configuration key.
type CallingConvention int

const (
	CDecl CallingConvention = iota
	StdCall
)

// Library is a loaded target shared library.
type Library interface {
	Close() error
}

// ReturnValue is the opaque result of one invocation, kept as raw
// bytes since the engine has no use for it beyond logging.
type ReturnValue struct {
	Raw []byte
}

// Callable is a symbol resolved against a CallingConvention, ready to
// invoke with materialized arguments.
type Callable interface {
	Call(args []memtrace.Object) (ReturnValue, error)
}

// Linker is the symbol-linker primitive the Harness consumes: given a
// loaded library and a function name, it returns a Callable whose
// signature matches the configured C ABI. Implemented by
// platform-specific FFI glue outside this module.
type Linker interface {
	Load(path string) (Library, error)
	Lookup(lib Library, name string, convention CallingConvention) (Callable, error)
}

// newLinker constructs the platform symbol linker. Like the debugger
// primitive, the linker is an external collaborator with no FFI
// implementation in this module; platform-specific code registers one
// via SetLinkerFactory.
var newLinker func() (Linker, error)

// SetLinkerFactory registers the platform Linker constructor
// cmd/morpher-harness calls through NewLinker.
func SetLinkerFactory(f func() (Linker, error)) { newLinker = f }

// NewLinker constructs the registered platform Linker.
func NewLinker() (Linker, error) {
	if newLinker == nil {
		return nil, errors.New("harness: no platform symbol linker registered; call harness.SetLinkerFactory from platform-specific init code")
	}
	return newLinker()
}

// ConventionFromDLLType maps the fuzzer.dll_type configuration string
// ("cdecl" or "stdcall") to a CallingConvention.
func ConventionFromDLLType(dllType string) CallingConvention {
	if dllType == "stdcall" {
		return StdCall
	}
	return CDecl
}
