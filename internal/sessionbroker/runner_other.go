//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package sessionbroker

import (
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcAttr(cmd *exec.Cmd, cred *Credential, tty int) {
	attr := &syscall.SysProcAttr{Setpgid: true}
	if tty >= 0 {
		attr.Foreground = true
		attr.Ctty = tty
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

func holdTerminal()        { signal.Ignore(syscall.SIGTTOU) }
func releaseTerminalHold() { signal.Reset(syscall.SIGTTOU) }

func reclaimTerminal(fd int) error {
	defer releaseTerminalHold()
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, unix.Getpgrp())
}

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
