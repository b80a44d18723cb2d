package host

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"jumpgo/internal/bundle"
	"jumpgo/internal/rpcserver"
	"jumpgo/internal/wire"
)

// Launcher starts a child process and returns a driver for talking to it.
type Launcher interface {
	Launch(b bundle.Bundle, userArgv []string) (*ChildProcess, error)
}

// ChildProcess bundles the running child, its framed transport, and an
// rpcserver.Server built on top so callers can immediately issue
// server.Request calls.
type ChildProcess struct {
	Server *rpcserver.Server
	cmd    *exec.Cmd
	status *os.File
}

// Wait blocks for the child to exit.
func (c *ChildProcess) Wait() error {
	if c.cmd == nil {
		return nil
	}
	return c.cmd.Wait()
}

// Kill forcibly terminates the child's whole process group, the same
// Setpgid-based group kill cmd/agent/main.go uses for user command
// subprocesses, applied here to the child itself.
func (c *ChildProcess) Kill() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}
	_ = syscall.Kill(-c.cmd.Process.Pid, syscall.SIGKILL)
	return c.cmd.Process.Kill()
}

// StatusReader exposes the status pipe for reading lifecycle/exception
// records, when available.
func (c *ChildProcess) StatusReader() io.Reader { return c.status }

// LocalLauncher runs the child as a local subprocess with the bundle and
// pipe descriptors passed via cmd.ExtraFiles, grounded directly in the
// teacher's os/exec-based process management (cmd/agent/main.go's use of
// exec.Cmd, SysProcAttr{Setpgid: true} for group-kill semantics).
type LocalLauncher struct {
	Binary string
}

// Launch starts the child binary, performs the one-shot bundle handoff,
// and returns a ready ChildProcess whose Server has not yet been Start'd
// (callers register handlers first, then call Server.Start()).
func (l LocalLauncher) Launch(b bundle.Bundle, userArgv []string) (*ChildProcess, error) {
	programR, programW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("host: launch: program pipe: %w", err)
	}
	// child reads from hostToChild, host writes to it
	hostToChildR, hostToChildW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("host: launch: in pipe: %w", err)
	}
	// child writes to childToHost, host reads from it
	childToHostR, childToHostW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("host: launch: out pipe: %w", err)
	}
	statusR, statusW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("host: launch: status pipe: %w", err)
	}

	// ExtraFiles are assigned fds 3, 4, 5, 6... in the child in the order
	// given here.
	extraFiles := []*os.File{programR, childToHostW, hostToChildR, statusW}
	hs := Handshake{
		ExtraFileCount: 4,
		BootstrapFD:    0,
		ProgramFD:      3,
		PipeOutFD:      4,
		PipeInFD:       5,
		StatusFD:       6,
		UserArgv:       userArgv,
	}

	cmd := exec.Command(l.Binary, hs.Argv()...)
	cmd.ExtraFiles = extraFiles
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		closeAll(programR, programW, hostToChildR, hostToChildW, childToHostR, childToHostW, statusR, statusW)
		return nil, fmt.Errorf("host: launch: start child: %w", err)
	}

	// Host no longer needs the child-owned ends.
	_ = programR.Close()
	_ = childToHostW.Close()
	_ = hostToChildR.Close()
	_ = statusW.Close()

	raw, err := MarshalBundle(b)
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("host: launch: marshal bundle: %w", err)
	}
	if _, err := programW.Write(raw); err != nil {
		_ = cmd.Process.Kill()
		return nil, fmt.Errorf("host: launch: write bundle: %w", err)
	}
	if err := programW.Close(); err != nil {
		return nil, fmt.Errorf("host: launch: close program pipe: %w", err)
	}

	q := wire.New(childToHostR, hostToChildW, nil)
	srv := rpcserver.New(q)

	return &ChildProcess{Server: srv, cmd: cmd, status: statusR}, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

// waitStartTimeout is a small helper matching the teacher's
// waitForAgentReady-style bounded polling loop: it retries fn every 20ms
// until fn succeeds or timeout elapses (VMLauncher.WaitReady passes a
// vsock dial as fn).
func waitStartTimeout(fn func() error, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(20 * time.Millisecond)
	}
	if lastErr != nil {
		return fmt.Errorf("host: not ready after %s: %w", timeout, lastErr)
	}
	return fmt.Errorf("host: not ready after %s", timeout)
}
