// Command morpher-harness is the process-isolated worker the Monitor
// spawns for one trace replay. It is never invoked directly by a
// user; Monitor's ProcessSpawner starts it with fd 3 (inherited) as
// the incoming trace pipe and fd 4 as the outgoing ping pipe, so a
// fault in the target library can only ever take down this process.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dbhaskaran1/morpher/internal/harness"
	"github.com/dbhaskaran1/morpher/internal/ipc"
	"github.com/dbhaskaran1/morpher/internal/logging"
)

const (
	traceFD = 3
	pingFD  = 4
)

func main() {
	target := flag.String("target", "", "path to the target shared library")
	dllType := flag.String("dll-type", "cdecl", "C ABI: cdecl or stdcall")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logging.Setup(*verbose)
	log := logging.For("harness")

	if *target == "" {
		fmt.Fprintln(os.Stderr, "morpher-harness: -target is required")
		os.Exit(2)
	}

	if err := run(*target, *dllType); err != nil {
		log.WithError(err).Error("morpher-harness: fatal")
		os.Exit(1)
	}
}

func run(target, dllType string) error {
	traceIn := os.NewFile(traceFD, "morpher-trace")
	pingOut := os.NewFile(pingFD, "morpher-ping")
	if traceIn == nil || pingOut == nil {
		return fmt.Errorf("morpher-harness: expected trace/ping pipes on fd %d/%d", traceFD, pingFD)
	}

	conn := ipc.NewHarnessConn(traceIn, pingOut)
	defer conn.Close()

	trace, err := conn.RecvTrace()
	if err != nil {
		return fmt.Errorf("morpher-harness: %w", err)
	}

	linker, err := harness.NewLinker()
	if err != nil {
		return err
	}

	h := &harness.Harness{
		Linker:        linker,
		TargetLibrary: target,
		Convention:    harness.ConventionFromDLLType(dllType),
		Log:           logging.For("harness"),
	}
	return h.Run(trace, conn)
}
