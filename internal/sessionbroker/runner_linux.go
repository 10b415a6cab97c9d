//go:build linux

package sessionbroker

import (
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcAttr puts the child in its own process group, kills it when the
// broker dies and optionally switches it to cred. A tty of 0 or more is the
// broker's descriptor of the child's stdin terminal; the group is made that
// terminal's foreground group.
func setProcAttr(cmd *exec.Cmd, cred *Credential, tty int) {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pgid:      0,
		Pdeathsig: syscall.SIGKILL,
	}
	if tty >= 0 {
		attr.Foreground = true
		attr.Ctty = tty // a descriptor in the parent, unlike Setctty
	}
	if cred != nil {
		attr.Credential = &syscall.Credential{
			Uid:    cred.UID,
			Gid:    cred.GID,
			Groups: cred.Groups,
		}
	}
	cmd.SysProcAttr = attr
}

// holdTerminal ignores SIGTTOU while the broker is a background group on
// its terminal, so it can still log there and take the terminal back.
func holdTerminal() {
	signal.Ignore(syscall.SIGTTOU)
}

func releaseTerminalHold() {
	signal.Reset(syscall.SIGTTOU)
}

// reclaimTerminal makes the broker's process group the foreground group of
// fd again.
func reclaimTerminal(fd int) error {
	defer releaseTerminalHold()
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, unix.Getpgrp())
}

// killProcessGroup kills the entire process group of the command.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return unix.Kill(-pgid, unix.SIGKILL)
}
