package memtrace

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
)

// EncodeTrace serializes t with gob, the same wire format used for
// the parent<->harness IPC channel (internal/ipc), so one codec
// covers both on-disk persistence and live replay.
func EncodeTrace(t *Trace) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return nil, fmt.Errorf("memtrace: encode trace: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTrace is the inverse of EncodeTrace.
func DecodeTrace(r io.Reader) (*Trace, error) {
	var t Trace
	if err := gob.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("memtrace: decode trace: %w", err)
	}
	return &t, nil
}

// EncodeMemory serializes m with gob as its block list plus pointer
// set.
func EncodeMemory(m *Memory) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("memtrace: encode memory: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMemory is the inverse of EncodeMemory.
func DecodeMemory(data []byte) (*Memory, error) {
	var m Memory
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("memtrace: decode memory: %w", err)
	}
	return &m, nil
}

// SaveTrace writes t to path, creating or truncating the file.
func SaveTrace(path string, t *Trace) error {
	data, err := EncodeTrace(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("memtrace: save trace to %s: %w", path, err)
	}
	return nil
}

// LoadTrace reads and decodes a Trace previously written by
// SaveTrace.
func LoadTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memtrace: load trace from %s: %w", path, err)
	}
	defer f.Close()
	return DecodeTrace(f)
}
