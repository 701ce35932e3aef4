package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dbhaskaran1/morpher/internal/capture"
	"github.com/dbhaskaran1/morpher/internal/config"
	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/dbhaskaran1/morpher/internal/logging"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/dbhaskaran1/morpher/internal/model"
	"github.com/dbhaskaran1/morpher/internal/report"
	"github.com/spf13/cobra"
)

func newCollectCmd() *cobra.Command {
	var modelPath string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run collector.list under a debugger and capture call snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(modelPath)
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "model.xml", "path to the target library's type model (XML)")
	return cmd
}

func runCollect(modelPath string) error {
	logging.Setup(verbose)
	log := logging.For("tracerecorder")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// The collector needs fuzzer.target too: breakpoints are set when
	// the library with that basename loads into the host program.
	if err := cfg.Validate(true, true); err != nil {
		return err
	}
	if !cfg.Collector.Enabled {
		log.Info("collector.enabled is false, nothing to do")
		return nil
	}

	m, err := model.Load(modelPath)
	if err != nil {
		return err
	}

	cases, err := config.LoadExeList(cfg.Collector.List)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		log.Warn("collector.list named no executables, nothing to do")
		return nil
	}

	tracesDir := filepath.Join(cfg.Directories.Data, "traces")
	if err := os.MkdirAll(tracesDir, 0o755); err != nil {
		return fmt.Errorf("collect: creating %s: %w", tracesDir, err)
	}

	rep := report.New()
	rep.StartStatus()
	defer rep.StopStatus()

	n := 0
	for i, c := range cases {
		dbg, err := debugger.New()
		if err != nil {
			return err
		}

		rCfg := capture.Config{
			TargetLibrary: cfg.Fuzzer.Target,
			Timeout:       config.Seconds(cfg.Collector.Timeout),
			CopyLimit:     cfg.Collector.CopyLimit,
			GlobalLimit:   cfg.Collector.GlobalLimit,
			StackAlign:    cfg.Collector.StackAlign,
			WordSize:      config.WordSize(),
		}
		tr := capture.NewTraceRecorder(rCfg, m, dbg)
		tr.Log = logging.For("tracerecorder")

		rep.Status("collecting %d/%d: %s", i+1, len(cases), c.Exe)
		trace, err := tr.Record(context.Background(), c.Exe, c.Args)
		if err != nil {
			return fmt.Errorf("collect: recording %s: %w", c.Exe, err)
		}
		if trace == nil {
			log.Warnf("collect: %s produced no snapshots", c.Exe)
			continue
		}

		path := filepath.Join(tracesDir, fmt.Sprintf("trace-%d.bin", n))
		if err := memtrace.SaveTrace(path, trace); err != nil {
			return err
		}
		log.Infof("collect: wrote %s (%d snapshots)", path, len(trace.Snapshots))
		n++
	}
	return nil
}
