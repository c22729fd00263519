package engine

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// process is what the session needs from a running engine executable.
// Tests substitute a scripted double.
type process interface {
	// Exited is closed once the process has exited, for any reason.
	Exited() <-chan struct{}
	// ExitCode is valid only after Exited is closed.
	ExitCode() int
	// Kill forcibly terminates the process. Idempotent.
	Kill() error
}

// Process supervises one spawned engine executable: it owns the process
// handle and both pipe ends, and watches for exit so that unexpected
// termination surfaces as an event rather than a silent pipe close.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	exited   chan struct{}
	exitCode int

	killOnce sync.Once
	killErr  error
}

// Spawn launches the engine binary with its pipes redirected. The working
// directory must contain whatever auxiliary book/weight files the engine
// needs; that is opaque here. Stderr is forwarded untouched as a
// diagnostic sink, never parsed as protocol.
func Spawn(path, workDir string) (*Process, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	if fi.IsDir() || fi.Mode()&0111 == 0 {
		return nil, &SpawnError{Path: path, Err: fmt.Errorf("not an executable file")}
	}

	cmd := exec.Command(path)
	cmd.Dir = workDir
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		exited: make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		if err != nil {
			if ee, ok := err.(*exec.ExitError); ok {
				p.exitCode = ee.ExitCode()
			} else {
				p.exitCode = -1
			}
		}
		close(p.exited)
	}()

	return p, nil
}

// Stdin returns the write end of the engine's standard input.
func (p *Process) Stdin() io.WriteCloser { return p.stdin }

// Stdout returns the read end of the engine's standard output.
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// Exited is closed once the process has exited.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// ExitCode reports the exit status. Valid only after Exited is closed.
func (p *Process) ExitCode() int { return p.exitCode }

// Kill forcibly terminates the process. Safe to call from shutdown and
// cancellation paths, and safe to call more than once.
func (p *Process) Kill() error {
	p.killOnce.Do(func() {
		select {
		case <-p.exited:
			// Already gone.
		default:
			p.killErr = p.cmd.Process.Kill()
		}
	})
	return p.killErr
}

// WaitExit blocks until the process exits or the timeout elapses.
// Reports whether it exited in time.
func (p *Process) WaitExit(timeout time.Duration) bool {
	select {
	case <-p.exited:
		return true
	case <-time.After(timeout):
		return false
	}
}
