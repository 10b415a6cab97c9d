package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/Dennisbonke/wayland-greeter/internal/secmem"
)

// readSecret reads the password from path, from stdin when path is "-",
// or from the terminal with echo off when path is empty.
func readSecret(path string, stdin *os.File, prompt io.Writer) (*secmem.SecureString, error) {
	switch path {
	case "":
		if !term.IsTerminal(int(stdin.Fd())) {
			return readSecretLine(stdin)
		}
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(stdin.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return nil, fmt.Errorf("read password: %w", err)
		}
		return secmem.NewSecureBytes(b), nil
	case "-":
		return readSecretLine(stdin)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open password file: %w", err)
		}
		defer f.Close()
		return readSecretLine(f)
	}
}

// readSecretLine takes the first line of r without its line ending.
func readSecretLine(r io.Reader) (*secmem.SecureString, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		clear(line)
		return nil, fmt.Errorf("read password: %w", err)
	}
	line = bytes.TrimRight(line, "\r\n")
	return secmem.NewSecureBytes(line), nil
}
