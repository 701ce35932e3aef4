package memtrace

import "fmt"

// Trace is an ordered sequence of Snapshots sharing one TypeManager,
// so user-type ids stay globally meaningful across the whole capture.
type Trace struct {
	Snapshots   []*Snapshot
	TypeManager *TypeManager
}

// ReplayedCall is one materialized (function, args) pair yielded by a
// Trace's replay iterator.
type ReplayedCall struct {
	FunctionName string
	Args         []Object
}

// ReplayIter pulls one call at a time out of a Trace, in snapshot
// order, so a caller like the Harness can emit a ping before each
// invocation without materializing the whole trace up front.
type ReplayIter struct {
	trace *Trace
	idx   int
}

// Replay returns an iterator over t's snapshots in capture order.
func (t *Trace) Replay() *ReplayIter {
	return &ReplayIter{trace: t}
}

// Next returns the next replayed call, or ok == false once the trace
// is exhausted.
func (it *ReplayIter) Next() (call ReplayedCall, ok bool, err error) {
	if it.idx >= len(it.trace.Snapshots) {
		return ReplayedCall{}, false, nil
	}
	snap := it.trace.Snapshots[it.idx]
	it.idx++
	name, args, err := snap.Replay(it.trace.TypeManager)
	if err != nil {
		return ReplayedCall{}, false, fmt.Errorf("memtrace: trace replay at snapshot %d: %w", it.idx-1, err)
	}
	return ReplayedCall{FunctionName: name, Args: args}, true, nil
}

// Len reports how many snapshots this trace holds.
func (t *Trace) Len() int {
	return len(t.Snapshots)
}
