package main

import (
	"path/filepath"
	"time"

	"github.com/dbhaskaran1/morpher/internal/config"
	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/dbhaskaran1/morpher/internal/fuzzer"
	"github.com/dbhaskaran1/morpher/internal/generator"
	"github.com/dbhaskaran1/morpher/internal/logging"
	"github.com/dbhaskaran1/morpher/internal/monitor"
	"github.com/spf13/cobra"
)

func newFuzzCmd() *cobra.Command {
	var harnessPath string
	cmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Mutate stored traces and replay each under a monitored harness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFuzz(harnessPath)
		},
	}
	cmd.Flags().StringVar(&harnessPath, "harness", "morpher-harness", "path to the morpher-harness worker binary")
	return cmd
}

func runFuzz(harnessPath string) error {
	logging.Setup(verbose)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(false, true); err != nil {
		return err
	}
	if !cfg.Fuzzer.Enabled {
		logging.For("fuzzer").Info("fuzzer.enabled is false, nothing to do")
		return nil
	}

	if err := monitor.Bootstrap(monitor.Config{
		CrashDir: filepath.Join(cfg.Directories.Data, "crashers"),
		HangDir:  filepath.Join(cfg.Directories.Data, "hangers"),
	}); err != nil {
		return err
	}

	dbg, err := debugger.New()
	if err != nil {
		return err
	}

	mon := monitor.NewMonitor(monitor.Config{
		Timeout:  config.Seconds(cfg.Fuzzer.Timeout),
		CrashDir: filepath.Join(cfg.Directories.Data, "crashers"),
		HangDir:  filepath.Join(cfg.Directories.Data, "hangers"),
	}, dbg, &monitor.ProcessSpawner{
		HarnessPath:   harnessPath,
		TargetLibrary: cfg.Fuzzer.Target,
		DLLType:       cfg.Fuzzer.DLLType,
	})
	mon.Log = logging.For("monitor")

	f := &fuzzer.Fuzzer{
		Cfg: fuzzer.Config{
			TraceDir:     filepath.Join(cfg.Directories.Data, "traces"),
			FuzzPointers: cfg.Fuzzer.FuzzPointers,
			TraceMode:    fuzzer.IterationMode(cfg.Fuzzer.TraceMode),
			SnapshotMode: fuzzer.IterationMode(cfg.Fuzzer.SnapshotMode),
			Generator: generator.Config{
				Mutational:  cfg.Fuzzer.Mutational,
				MutateRange: cfg.Fuzzer.MutateRange,
				Heuristic:   cfg.Fuzzer.Heuristic,
				Random:      cfg.Fuzzer.Random,
				RandomCases: cfg.Fuzzer.RandomCases,
				PointerSize: config.WordSize(),
			},
		},
		Monitor: mon,
		Log:     logging.For("fuzzer"),
	}

	start := time.Now()
	err = f.Run()
	logging.For("fuzzer").Infof("fuzz: finished in %s", time.Since(start).Round(time.Millisecond))
	return err
}
