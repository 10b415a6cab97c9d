//go:build !linux && !darwin

package secmem

import "errors"

func lockMemory([]byte) error {
	return errors.New("secmem: memory locking not supported on this platform")
}

func unlockMemory([]byte) {}
