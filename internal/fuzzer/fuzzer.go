// Package fuzzer drives the top-level mutate-replay-restore loop over
// a directory of captured Traces. Traversal order is governed by two
// independent knobs: one for the snapshots within a trace, one for
// the tags within a snapshot.
package fuzzer

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dbhaskaran1/morpher/internal/generator"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/dbhaskaran1/morpher/internal/report"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IterationMode selects how the top loop advances across either the
// snapshots within one trace or the tags within one snapshot.
type IterationMode string

const (
	Sequential   IterationMode = "sequential"
	Simultaneous IterationMode = "simultaneous"
)

// Runner is the subset of Monitor the fuzzer loop depends on.
type Runner interface {
	Run(batchID string, trace *memtrace.Trace) error
}

// Config mirrors the fuzzer.* configuration keys governing traversal
// order and which tags are eligible.
type Config struct {
	TraceDir     string
	FuzzPointers bool
	TraceMode    IterationMode
	SnapshotMode IterationMode
	Generator    generator.Config
}

// Fuzzer drives Monitor.Run over every candidate value of every
// eligible tag in every captured trace under Cfg.TraceDir.
type Fuzzer struct {
	Cfg     Config
	Monitor Runner
	Report  report.Reporter
	Log     *logrus.Entry
}

func (f *Fuzzer) logger() *logrus.Entry {
	if f.Log != nil {
		return f.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Run discovers every "*.bin" trace file under Cfg.TraceDir and
// fuzzes each in turn, generating one random batch id per trace file;
// the Monitor names every artifact from that trace's replays after
// it, so all replays of one capture share a name prefix.
func (f *Fuzzer) Run() error {
	entries, err := os.ReadDir(f.Cfg.TraceDir)
	if err != nil {
		return fmt.Errorf("fuzzer: scanning %s: %w", f.Cfg.TraceDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".bin") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		f.logger().Warn("fuzzer: no trace files found, nothing to fuzz")
		return nil
	}

	rep := f.Report
	if rep == nil {
		rep = report.New()
	}
	rep.StartStatus()
	defer rep.StopStatus()

	for i, name := range names {
		path := filepath.Join(f.Cfg.TraceDir, name)
		trace, err := memtrace.LoadTrace(path)
		if err != nil {
			f.logger().WithError(err).Warnf("fuzzer: dropping unreadable trace %s", name)
			continue
		}
		rep.Status("fuzzing trace %d/%d: %s", i+1, len(names), name)
		batchID := uuid.New().String()
		if err := f.fuzzTrace(rep, batchID, trace); err != nil {
			return fmt.Errorf("fuzzer: fuzzing %s: %w", name, err)
		}
	}
	return nil
}

// tagTarget is one fuzzable tag resolved to its snapshot, byte size,
// and value kind.
type tagTarget struct {
	snap *memtrace.Snapshot
	tag  memtrace.Tag
	kind memtrace.Kind
	size int
}

func (f *Fuzzer) fuzzableTags(tm *memtrace.TypeManager, snap *memtrace.Snapshot) ([]tagTarget, error) {
	var tags []memtrace.Tag
	for tag := range snap.OtherTags {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Addr != tags[j].Addr {
			return tags[i].Addr < tags[j].Addr
		}
		return tags[i].Code < tags[j].Code
	})

	var out []tagTarget
	for _, tag := range tags {
		if memtrace.IsPointerCode(tag.Code) && !f.Cfg.FuzzPointers {
			continue
		}
		d, err := tm.ClassFor(tag.Code)
		if err != nil {
			return nil, err
		}
		if !d.Primitive {
			continue
		}
		size, _, err := tm.Info(tag.Code)
		if err != nil {
			return nil, err
		}
		out = append(out, tagTarget{snap: snap, tag: tag, kind: d.Kind, size: size})
	}
	return out, nil
}

// step is one monitor-triggering unit of work: apply writes the
// candidate value(s) for this step, after runs once Monitor.Run
// returns, to pulse progress and restore originals once a tag (or a
// whole simultaneous round) is exhausted.
type step struct {
	apply func()
	after func()
}

func (f *Fuzzer) fuzzTrace(rep report.Reporter, batchID string, trace *memtrace.Trace) error {
	perSnapshot := make([][]step, len(trace.Snapshots))
	for i, snap := range trace.Snapshots {
		tags, err := f.fuzzableTags(trace.TypeManager, snap)
		if err != nil {
			return err
		}
		switch f.Cfg.SnapshotMode {
		case Simultaneous:
			perSnapshot[i] = f.buildSimultaneousSteps(rep, tags)
		default:
			perSnapshot[i] = f.buildSequentialSteps(rep, tags)
		}
	}

	var steps []step
	switch f.Cfg.TraceMode {
	case Simultaneous:
		steps = interleave(perSnapshot)
	default:
		for _, s := range perSnapshot {
			steps = append(steps, s...)
		}
	}

	for _, s := range steps {
		s.apply()
		if err := f.Monitor.Run(batchID, trace); err != nil {
			return err
		}
		s.after()
	}
	return nil
}

// interleave round-robins across each snapshot's independent step
// list, advancing every snapshot one step per round: the "advance
// all in lockstep" traversal of simultaneous trace mode.
func interleave(perSnapshot [][]step) []step {
	var out []step
	cursors := make([]int, len(perSnapshot))
	for {
		progressed := false
		for i, steps := range perSnapshot {
			if cursors[i] < len(steps) {
				out = append(out, steps[cursors[i]])
				cursors[i]++
				progressed = true
			}
		}
		if !progressed {
			return out
		}
	}
}

// buildSequentialSteps fuzzes one tag at a time to completion,
// restoring its original value before moving to the next.
func (f *Fuzzer) buildSequentialSteps(rep report.Reporter, tags []tagTarget) []step {
	var steps []step
	for _, t := range tags {
		t := t
		orig, err := t.snap.Memory.ReadAs(t.tag.Addr, t.kind, t.size, binary.NativeEndian)
		if err != nil {
			f.logger().WithError(err).Warnf("fuzzer: dropping unreadable tag %#x", t.tag.Addr)
			continue
		}
		candidates, err := generator.Generate(f.Cfg.Generator, t.tag.Code, orig)
		if err != nil {
			f.logger().WithError(err).Warnf("fuzzer: dropping ungeneratable tag %#x", t.tag.Addr)
			continue
		}
		for i, v := range candidates {
			v := v
			last := i == len(candidates)-1
			steps = append(steps, step{
				// The write targets the same addr/size the original was
				// just read from, so it cannot fail.
				apply: func() { _ = t.snap.Memory.WriteAs(t.tag.Addr, v, t.size, binary.NativeEndian) },
				after: func() {
					rep.Status("fuzzing %s at %#x", t.snap.FunctionName, t.tag.Addr)
					if last {
						_ = t.snap.Memory.WriteAs(t.tag.Addr, orig, t.size, binary.NativeEndian)
					}
				},
			})
		}
	}
	return steps
}

// buildSimultaneousSteps fuzzes every tag in the snapshot together:
// each round writes the round'th candidate of every tag that still
// has one, so one Monitor.Run call exercises a combination of
// mutations rather than a single isolated one. Originals are restored
// once, after the final round.
func (f *Fuzzer) buildSimultaneousSteps(rep report.Reporter, tags []tagTarget) []step {
	type prepared struct {
		target     tagTarget
		original   memtrace.Value
		candidates []memtrace.Value
	}
	var preparedTags []prepared
	maxLen := 0
	for _, t := range tags {
		orig, err := t.snap.Memory.ReadAs(t.tag.Addr, t.kind, t.size, binary.NativeEndian)
		if err != nil {
			f.logger().WithError(err).Warnf("fuzzer: dropping unreadable tag %#x", t.tag.Addr)
			continue
		}
		candidates, err := generator.Generate(f.Cfg.Generator, t.tag.Code, orig)
		if err != nil {
			f.logger().WithError(err).Warnf("fuzzer: dropping ungeneratable tag %#x", t.tag.Addr)
			continue
		}
		preparedTags = append(preparedTags, prepared{target: t, original: orig, candidates: candidates})
		if len(candidates) > maxLen {
			maxLen = len(candidates)
		}
	}

	var steps []step
	for round := 0; round < maxLen; round++ {
		round := round
		last := round == maxLen-1
		steps = append(steps, step{
			apply: func() {
				for _, p := range preparedTags {
					if round < len(p.candidates) {
						_ = p.target.snap.Memory.WriteAs(p.target.tag.Addr, p.candidates[round], p.target.size, binary.NativeEndian)
					}
				}
			},
			after: func() {
				rep.Status("fuzzing round %d/%d", round+1, maxLen)
				if last {
					for _, p := range preparedTags {
						_ = p.target.snap.Memory.WriteAs(p.target.tag.Addr, p.original, p.target.size, binary.NativeEndian)
					}
				}
			},
		})
	}
	return steps
}
