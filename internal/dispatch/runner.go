package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// Result is the outcome of a process that ran to completion
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

//go:generate mockgen -source=runner.go -destination=mock/mock_runner.go -package=mock

// Runner starts a program and waits for it to exit. A nonzero exit status is
// reported through Result, not as an error. Errors are reserved for programs
// that could not be started or were killed because ctx expired.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs programs as child processes. The child inherits the
// environment of the daemon and runs in the program's directory.
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.Command(name, args...)
	cmd.Dir = filepath.Dir(name)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			// kill the whole group, grandchildren keep stdout open otherwise
			unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		case <-done:
		}
	}()

	err := cmd.Wait()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	if err != nil {
		return nil, err
	}

	return result, nil
}
