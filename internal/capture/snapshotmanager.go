package capture

import (
	"encoding/binary"
	"fmt"

	"github.com/dbhaskaran1/morpher/internal/debugger"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"github.com/dbhaskaran1/morpher/internal/rangeset"
)

// snapshotManager accumulates the tags and minimal cover ranges for
// one captured call, then reads each covering range from the
// debuggee exactly once to build the resulting Snapshot, so no byte
// of a large pointer-reachable graph is ever copied twice.
type snapshotManager struct {
	dbg          debugger.Debugger
	functionName string
	tm           *memtrace.TypeManager
	order        binary.ByteOrder

	ranges  rangeset.Set
	tagged  map[memtrace.Tag]bool // every (addr, code) ever registered, for cycle-breaking
	argTags []memtrace.Tag
	other   []memtrace.Tag // non-user-type tags only, attached to the Snapshot
}

func newSnapshotManager(dbg debugger.Debugger, functionName string, tm *memtrace.TypeManager, order binary.ByteOrder) *snapshotManager {
	return &snapshotManager{
		dbg:          dbg,
		functionName: functionName,
		tm:           tm,
		order:        order,
		tagged:       make(map[memtrace.Tag]bool),
	}
}

// addArg appends to the ordered argument list. The arg's footprint
// was already registered by the tag walker via addObject, so this
// never touches the tagged/other bookkeeping.
func (sm *snapshotManager) addArg(addr int64, code string) {
	sm.argTags = append(sm.argTags, memtrace.Tag{Addr: addr, Code: code})
}

// checkObject reports whether (addr, code) is already registered.
func (sm *snapshotManager) checkObject(addr int64, code string) bool {
	return sm.tagged[memtrace.Tag{Addr: addr, Code: code}]
}

// addObject registers the tag and extends the cover range by
// [addr, addr+size-1]. Only non-user-type tags are kept for
// attachment to the resulting Snapshot; user-type tags exist solely
// to break recursion in the walker.
func (sm *snapshotManager) addObject(addr int64, size int, code string) {
	tag := memtrace.Tag{Addr: addr, Code: code}
	if sm.tagged[tag] {
		return
	}
	sm.tagged[tag] = true
	if _, isUserType := memtrace.UserTypeID(code); !isUserType {
		sm.other = append(sm.other, tag)
	}
	if size <= 0 {
		return
	}
	sm.ranges.Add(addr, addr+int64(size)-1)
}

// snapshot reads every covering range from the debuggee once, builds
// the backing Memory, and installs the accumulated tags. A read
// failure against one range drops that block: tags that fall outside
// the resulting Memory are kept but will be unmaterializable at
// replay.
func (sm *snapshotManager) snapshot() (*memtrace.Snapshot, error) {
	var blocks []*memtrace.Block
	for _, r := range sm.ranges.Intervals() {
		n := r.Hi - r.Lo + 1
		data, err := sm.dbg.ReadMemory(r.Lo, n)
		if err != nil {
			continue
		}
		b, err := memtrace.NewBlock(r.Lo, data)
		if err != nil {
			continue
		}
		blocks = append(blocks, b)
	}

	mem, err := memtrace.NewMemory(blocks)
	if err != nil {
		return nil, fmt.Errorf("capture: building snapshot memory for %s: %w", sm.functionName, err)
	}

	snap := memtrace.NewSnapshot(sm.functionName, mem)
	for _, tag := range sm.other {
		if err := snap.AddTag(sm.tm, tag); err != nil {
			// Outside the captured cover (read failure above);
			// unmaterializable at replay but otherwise harmless.
			continue
		}
	}
	snap.SetArgs(sm.argTags)
	return snap, nil
}
