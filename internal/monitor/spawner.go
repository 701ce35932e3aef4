package monitor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/dbhaskaran1/morpher/internal/ipc"
	"github.com/dbhaskaran1/morpher/internal/memtrace"
	"golang.org/x/sys/unix"
)

// ProcessSpawner launches the morpher-harness binary as a
// process-group-isolated child connected over two dedicated pipes
// (inherited as fd 3/4). Replay always happens in the worker process,
// never in the engine itself, and the worker's only outbound message
// is a ping per call.
type ProcessSpawner struct {
	HarnessPath   string
	TargetLibrary string
	DLLType       string
}

type harnessProcess struct {
	cmd    *exec.Cmd
	conn   *ipc.MonitorConn
	closed bool
}

func (p *harnessProcess) PID() int               { return p.cmd.Process.Pid }
func (p *harnessProcess) Pings() <-chan ipc.Ping { return p.conn.Pings() }

// Kill signals the whole process group the harness was started in,
// so any children it spawned while loading the target library die
// with it.
func (p *harnessProcess) Kill() error {
	return unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL)
}

func (p *harnessProcess) Wait() error {
	if !p.closed {
		p.conn.Close()
		p.closed = true
	}
	return p.cmd.Wait()
}

// Spawn starts a fresh harness process and hands it trace over the
// inbound pipe before returning.
func (s *ProcessSpawner) Spawn(trace *memtrace.Trace) (HarnessProcess, error) {
	traceR, traceW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("monitor: creating trace pipe: %w", err)
	}
	pingR, pingW, err := os.Pipe()
	if err != nil {
		traceR.Close()
		traceW.Close()
		return nil, fmt.Errorf("monitor: creating ping pipe: %w", err)
	}

	cmd := exec.Command(s.HarnessPath, "-target", s.TargetLibrary, "-dll-type", s.DLLType)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{traceR, pingW}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		traceR.Close()
		traceW.Close()
		pingR.Close()
		pingW.Close()
		return nil, fmt.Errorf("monitor: starting %s: %w", s.HarnessPath, err)
	}
	traceR.Close()
	pingW.Close()

	conn := ipc.NewMonitorConn(pingR, traceW)
	if err := conn.SendTrace(trace); err != nil {
		unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		cmd.Wait()
		conn.Close()
		return nil, err
	}

	return &harnessProcess{cmd: cmd, conn: conn}, nil
}
