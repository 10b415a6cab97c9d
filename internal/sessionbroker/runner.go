package sessionbroker

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"golang.org/x/term"
)

// Credential is the identity a child runs under.
type Credential struct {
	UID    uint32
	GID    uint32
	Groups []uint32
}

// Spec describes the one child a login starts.
type Spec struct {
	Argv       []string
	Env        []string
	Credential *Credential // nil keeps the broker's identity
	Timeout    time.Duration
}

// ExitResult is how a child ended.
type ExitResult struct {
	Code     int
	Signaled bool
	TimedOut bool
	Err      error
}

// Process is a started child.
type Process interface {
	Pid() int
	// Wait blocks until the child exits, Spec.Timeout expires or ctx is
	// done. In the latter two cases the child's process group is killed.
	Wait(ctx context.Context) ExitResult
}

// ProcessRunner starts children.
type ProcessRunner interface {
	Start(spec Spec) (Process, error)
}

// ExecRunner starts children with os/exec, each in its own process group.
// When Stdin is a terminal that group becomes the terminal's foreground
// group until the child exits. Nil streams default to the broker's own.
type ExecRunner struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

func (r ExecRunner) Start(spec Spec) (Process, error) {
	if len(spec.Argv) == 0 || spec.Argv[0] == "" {
		return nil, errEmptyCommand
	}
	stdin, stdout, stderr := orFile(r.Stdin, os.Stdin), orFile(r.Stdout, os.Stdout), orFile(r.Stderr, os.Stderr)

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Env = spec.Env
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	tty := -1
	if term.IsTerminal(int(stdin.Fd())) {
		tty = int(stdin.Fd())
		holdTerminal()
	}
	setProcAttr(cmd, spec.Credential, tty)

	if err := cmd.Start(); err != nil {
		if tty >= 0 {
			releaseTerminalHold()
		}
		return nil, err
	}
	return &execProcess{cmd: cmd, timeout: spec.Timeout, tty: tty}, nil
}

func orFile(f, fallback *os.File) *os.File {
	if f != nil {
		return f
	}
	return fallback
}

type execProcess struct {
	cmd     *exec.Cmd
	timeout time.Duration
	tty     int // terminal handed to the child, or -1
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Wait(ctx context.Context) ExitResult {
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	var expired <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var res ExitResult
	var err error
	select {
	case err = <-done:
	case <-expired:
		res.TimedOut = true
		if kerr := killProcessGroup(p.cmd); kerr != nil {
			log.Warn("killing timed out program", "pid", p.Pid(), "error", kerr.Error())
		}
		err = <-done
	case <-ctx.Done():
		if kerr := killProcessGroup(p.cmd); kerr != nil {
			log.Warn("killing cancelled program", "pid", p.Pid(), "error", kerr.Error())
		}
		err = <-done
	}

	if p.tty >= 0 {
		if terr := reclaimTerminal(p.tty); terr != nil {
			log.Warn("taking back the terminal", "pid", p.Pid(), "error", terr.Error())
		}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		res.Err = err
	}
	state := p.cmd.ProcessState
	if state == nil {
		res.Code = ExitAbnormal
		return res
	}
	res.Code = state.ExitCode()
	if res.Code < 0 {
		res.Signaled = true
		res.Code = ExitAbnormal
	}
	return res
}
