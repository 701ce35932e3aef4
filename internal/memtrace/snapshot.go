package memtrace

import (
	"encoding/binary"
	"fmt"
)

// Snapshot is one captured call: the Memory it was captured into, the
// ordered argument Tags, and auxiliary Tags discovered while walking
// the pointer graph but not themselves arguments.
type Snapshot struct {
	FunctionName string
	Memory       *Memory
	ArgTags      []Tag
	OtherTags    map[Tag]bool
}

// NewSnapshot builds an empty Snapshot over mem for the named
// function.
func NewSnapshot(functionName string, mem *Memory) *Snapshot {
	return &Snapshot{
		FunctionName: functionName,
		Memory:       mem,
		OtherTags:    make(map[Tag]bool),
	}
}

// AddTag records tag as auxiliary metadata, after checking its
// footprint lies inside Memory. A "P" (or "P<code>") tag also
// registers its address in Memory's pointer set, so the patch pass
// needs no separate bookkeeping call.
func (s *Snapshot) AddTag(tm *TypeManager, tag Tag) error {
	size, _, err := tm.Info(tag.Code)
	if err != nil {
		return err
	}
	if !s.Memory.ContainsAddress(tag.Addr, int64(size)) {
		return &RangeError{tag.Addr, int64(size), "tag footprint outside memory"}
	}
	if s.OtherTags == nil {
		s.OtherTags = make(map[Tag]bool)
	}
	s.OtherTags[tag] = true
	if IsPointerCode(tag.Code) {
		s.Memory.RegisterPointer(tag.Addr)
	}
	return nil
}

// SetArgs installs the ordered positional argument tags.
func (s *Snapshot) SetArgs(tags []Tag) {
	s.ArgTags = tags
}

// Replay patches the snapshot's Memory exactly once, then
// materializes each argument tag in positional order, returning the
// function name and the materialized argument objects.
func (s *Snapshot) Replay(tm *TypeManager) (string, []Object, error) {
	if err := s.Memory.Patch(tm.PointerSize, binary.NativeEndian); err != nil {
		return "", nil, fmt.Errorf("memtrace: replay %s: %w", s.FunctionName, err)
	}
	args := make([]Object, 0, len(s.ArgTags))
	for _, tag := range s.ArgTags {
		obj, err := loadObject(tm, s.Memory, tag.Addr, tag.Code, binary.NativeEndian)
		if err != nil {
			return "", nil, fmt.Errorf("memtrace: replay %s: arg at %#x: %w", s.FunctionName, tag.Addr, err)
		}
		args = append(args, obj)
	}
	return s.FunctionName, args, nil
}
