package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
)

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
)

// FileSink appends log records to a file. Once the file would grow past
// its size limit it is shifted to path.1, path.1 to path.2 and so on up to
// the backup count. Reopen switches to a fresh file at the same path after
// an external tool such as logrotate has moved the old one away.
type FileSink struct {
	path  string
	limit int64
	keep  int

	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenFileSink opens path for appending, creating its directory if needed.
// Non-positive limits fall back to 10 MB and 3 backups.
func OpenFileSink(path string, maxSizeMB, maxBackups int) (*FileSink, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}

	s := &FileSink{path: path, limit: int64(maxSizeMB) << 20, keep: maxBackups}
	f, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	s.f, s.size = f, size
	return s, nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return 0, os.ErrClosed
	}
	if s.size > 0 && s.size+int64(len(p)) > s.limit {
		if err := s.shift(); err != nil {
			return 0, err
		}
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	return n, err
}

// Reopen replaces the open descriptor with a new one for the same path.
// If the new open fails the sink keeps writing to the old descriptor.
func (s *FileSink) Reopen() error {
	f, size, err := openAppend(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		f.Close()
		return os.ErrClosed
	}
	old := s.f
	s.f, s.size = f, size
	return old.Close()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// shift runs with mu held.
func (s *FileSink) shift() error {
	s.f.Close()
	s.f = nil

	names := make([]string, s.keep+1)
	names[0] = s.path
	for i := 1; i <= s.keep; i++ {
		names[i] = fmt.Sprintf("%s.%d", s.path, i)
	}
	if err := os.Remove(names[s.keep]); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("logging: drop oldest backup: %w", err)
	}
	for i := s.keep; i > 0; i-- {
		if err := os.Rename(names[i-1], names[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("logging: shift %s: %w", names[i-1], err)
		}
	}

	f, size, err := openAppend(s.path)
	if err != nil {
		return err
	}
	s.f, s.size = f, size
	return nil
}

func openAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("logging: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("logging: stat log file: %w", err)
	}
	return f, info.Size(), nil
}

// watchReopen calls sink.Reopen on every SIGHUP until the returned stop
// function runs.
func watchReopen(sink *FileSink) (stop func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-hup:
				if err := sink.Reopen(); err != nil {
					L("logging").Error("reopening log file", "path", sink.path, KeyError, err.Error())
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(hup)
			close(done)
		})
	}
}

type fileCloser struct {
	sink *FileSink
	stop func()
}

func (c fileCloser) Close() error {
	c.stop()
	return c.sink.Close()
}

// InitFile points the global logger at console and, when path is set, at
// a size-limited file that is reopened on SIGHUP. The returned closer
// stops the signal watcher and closes the file. On error the logger is
// still initialised on console alone.
func InitFile(format, level string, console io.Writer, path string, maxSizeMB, maxBackups int) (io.Closer, error) {
	if console == nil {
		console = os.Stderr
	}
	if path == "" {
		Init(format, level, console)
		return io.NopCloser(nil), nil
	}

	sink, err := OpenFileSink(path, maxSizeMB, maxBackups)
	if err != nil {
		Init(format, level, console)
		return io.NopCloser(nil), err
	}
	Init(format, level, io.MultiWriter(console, sink))
	return fileCloser{sink: sink, stop: watchReopen(sink)}, nil
}
