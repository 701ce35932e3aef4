// Package ipc frames the protocol between the engine and a harness
// worker: the monitor sends exactly one Trace down its pipe, and the
// harness answers with one Ping per call it is about to invoke. Both
// directions are gob streams over pipes the worker inherits at spawn.
package ipc

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/dbhaskaran1/morpher/internal/memtrace"
)

// Ping is the harness's only outbound message: one per call about to
// be replayed, so the monitor can count progress through a trace and
// pinpoint which call a subsequent crash or hang belongs to.
type Ping struct {
	Index int
}

// MonitorConn is the engine's end of the protocol: send the trace,
// then count pings until the worker hangs up.
type MonitorConn struct {
	enc   *gob.Encoder
	w     io.WriteCloser
	pings chan Ping
}

// NewMonitorConn wraps the monitor's pipe pair and starts draining
// pings immediately. The channel returned by Pings closes when the
// worker exits (pipe EOF) or sends something undecodable.
func NewMonitorConn(pingR io.Reader, traceW io.WriteCloser) *MonitorConn {
	c := &MonitorConn{
		enc:   gob.NewEncoder(traceW),
		w:     traceW,
		pings: make(chan Ping, 1),
	}
	go func() {
		defer close(c.pings)
		dec := gob.NewDecoder(pingR)
		for {
			var p Ping
			if dec.Decode(&p) != nil {
				return
			}
			c.pings <- p
		}
	}()
	return c
}

// SendTrace writes the trace the worker is to replay.
func (c *MonitorConn) SendTrace(t *memtrace.Trace) error {
	if err := c.enc.Encode(t); err != nil {
		return fmt.Errorf("ipc: sending trace: %w", err)
	}
	return nil
}

// Pings yields one Ping per call the worker is about to make.
func (c *MonitorConn) Pings() <-chan Ping { return c.pings }

// Close closes the outbound trace stream; the worker sees EOF on its
// next read.
func (c *MonitorConn) Close() error { return c.w.Close() }

// HarnessConn is the worker's end: receive the trace, then ping
// before each call.
type HarnessConn struct {
	dec *gob.Decoder
	enc *gob.Encoder
	w   io.WriteCloser
}

// NewHarnessConn wraps the pipe pair the worker inherited.
func NewHarnessConn(traceR io.Reader, pingW io.WriteCloser) *HarnessConn {
	return &HarnessConn{
		dec: gob.NewDecoder(traceR),
		enc: gob.NewEncoder(pingW),
		w:   pingW,
	}
}

// RecvTrace blocks until the monitor's trace arrives.
func (c *HarnessConn) RecvTrace() (*memtrace.Trace, error) {
	var t memtrace.Trace
	if err := c.dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("ipc: receiving trace: %w", err)
	}
	return &t, nil
}

// Ping tells the monitor that call index is about to be invoked.
func (c *HarnessConn) Ping(index int) error {
	if err := c.enc.Encode(Ping{Index: index}); err != nil {
		return fmt.Errorf("ipc: sending ping %d: %w", index, err)
	}
	return nil
}

// Close closes the outbound ping stream.
func (c *HarnessConn) Close() error { return c.w.Close() }
