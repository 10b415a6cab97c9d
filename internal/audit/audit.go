package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dennisbonke/wayland-greeter/internal/logging"
)

var log = logging.L("audit")

// Event types for audit logging.
const (
	EventBrokerStart     = "broker_start"
	EventLoginAttempt    = "login_attempt"
	EventLoginRejected   = "login_rejected"
	EventSessionCreated  = "session_created"
	EventSessionActive   = "session_activated"
	EventSessionReleased = "session_released"
	EventProgramStarted  = "program_started"
	EventProgramExited   = "program_exited"
	EventLogRotated      = "log_rotated"
)

// criticalEvents are event types that require fsync after writing.
var criticalEvents = map[string]bool{
	EventLoginRejected:  true,
	EventSessionCreated: true,
	EventProgramStarted: true,
}

// Entry is a single audit log record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"eventType"`
	SessionID string         `json:"sessionId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prevHash"`
	EntryHash string         `json:"entryHash"`
}

// Logger writes tamper-evident JSONL audit logs with a SHA-256 hash chain.
// On log rotation, a sentinel entry (EventLogRotated) is written as the first
// record in the new file, with prevHash linking to the last entry of the old file.
// Reopening an existing file continues the chain from its last entry.
type Logger struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	written    int64
	prevHash   string
	dropped    atomic.Int64
}

// NewLogger creates an audit logger appending to filePath.
func NewLogger(filePath string, maxSizeMB, maxBackups int) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}

	l := &Logger{
		filePath:   filePath,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		prevHash:   genesisHash,
	}

	if err := l.openFile(); err != nil {
		return nil, err
	}
	if last := lastEntryHash(filePath); last != "" {
		l.prevHash = last
	}

	log.Debug("audit logger started", "path", filePath)
	return l, nil
}

// Log writes a single audit entry with hash chain linking.
// The chain only advances after a successful write, so a failed write leaves
// the next entry linked to the same prevHash.
// Safe to call on a nil receiver (no-op).
func (l *Logger) Log(eventType string, sessionID string, details map[string]any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, data, err := l.seal(Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: eventType,
		SessionID: sessionID,
		Details:   details,
		PrevHash:  l.prevHash,
	})
	if err != nil {
		log.Error("failed to encode audit entry", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}

	if l.written+int64(len(data)) > l.maxSize {
		if err := l.rotate(); err != nil {
			log.Error("audit log rotation failed", "error", err)
			l.dropped.Add(1)
			return
		}
		// The sentinel moved the chain; re-link this entry to it.
		entry.PrevHash = l.prevHash
		if entry, data, err = l.seal(entry); err != nil {
			log.Error("failed to encode audit entry", "error", err, "eventType", eventType)
			l.dropped.Add(1)
			return
		}
	}

	n, err := l.file.Write(data)
	if err != nil {
		log.Error("failed to write audit entry", "error", err, "eventType", eventType)
		l.dropped.Add(1)
		return
	}
	l.written += int64(n)
	l.prevHash = entry.EntryHash

	if criticalEvents[eventType] {
		if err := l.file.Sync(); err != nil {
			log.Error("failed to fsync critical audit entry", "error", err, "eventType", eventType)
		}
	}
}

// seal computes the entry hash and returns the entry with its JSONL line.
func (l *Logger) seal(entry Entry) (Entry, []byte, error) {
	entry.EntryHash = ""
	hash, err := l.computeHash(entry)
	if err != nil {
		return entry, nil, err
	}
	entry.EntryHash = hash

	data, err := json.Marshal(entry)
	if err != nil {
		return entry, nil, fmt.Errorf("marshal entry: %w", err)
	}
	return entry, append(data, '\n'), nil
}

// Close flushes and closes the audit log file.
// Safe to call on a nil receiver (no-op).
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// DroppedCount returns the number of audit entries that failed to write.
// Returns -1 if the logger is nil (not initialized), distinguishing
// "logger not available" from "logger working with zero drops".
func (l *Logger) DroppedCount() int64 {
	if l == nil {
		return -1
	}
	return l.dropped.Load()
}

// computeHash produces the SHA-256 hash for an audit entry.
// Fields are length-prefixed to prevent delimiter injection attacks
// (e.g., a timestamp containing "|" colliding with another field combination).
func (l *Logger) computeHash(entry Entry) (string, error) {
	h := sha256.New()
	for _, field := range []string{entry.Timestamp, entry.EventType, entry.SessionID, entry.PrevHash} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	if entry.Details != nil {
		detailBytes, err := json.Marshal(entry.Details)
		if err != nil {
			return "", fmt.Errorf("marshal details for hash: %w", err)
		}
		fmt.Fprintf(h, "%d:", len(detailBytes))
		h.Write(detailBytes)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (l *Logger) openFile() error {
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}

	l.file = f
	l.written = info.Size()
	return nil
}

func (l *Logger) rotate() error {
	prevHashBeforeRotation := l.prevHash

	if l.file != nil {
		l.file.Close()
	}

	// Shift backups up by one, dropping the oldest.
	for i := l.maxBackups; i >= 2; i-- {
		src := l.backupName(i - 1)
		dst := l.backupName(i)
		if i == l.maxBackups {
			if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
				log.Warn("audit log rotation: failed to remove oldest backup", "path", dst, "error", err)
			}
		}
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			log.Warn("audit log rotation: failed to rename backup", "src", src, "dst", dst, "error", err)
		}
	}

	// Rename current log to .1
	if err := os.Rename(l.filePath, l.backupName(1)); err != nil && !os.IsNotExist(err) {
		log.Warn("audit log rotation: failed to rename current log", "error", err)
	}

	if err := l.openFile(); err != nil {
		return err
	}

	// The first record of the new file links back to the old one.
	sentinel, data, err := l.seal(Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: EventLogRotated,
		PrevHash:  prevHashBeforeRotation,
		Details: map[string]any{
			"previousFile": l.backupName(1),
		},
	})
	if err == nil {
		var n int
		n, err = l.file.Write(data)
		l.written += int64(n)
	}
	if err != nil {
		log.Error("rotation sentinel failed, hash chain broken", "error", err)
		l.dropped.Add(1)
		l.prevHash = brokenChainHash
		return nil
	}
	l.prevHash = sentinel.EntryHash
	return nil
}

func (l *Logger) backupName(index int) string {
	if index == 0 {
		return l.filePath
	}
	return fmt.Sprintf("%s.%d", l.filePath, index)
}

const (
	genesisHash     = "genesis"
	brokenChainHash = "chain-broken"
)

// lastEntryHash returns the entryHash of the last well-formed line in path,
// or "" when the file is empty or unreadable.
func lastEntryHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if json.Unmarshal(scanner.Bytes(), &e) == nil && e.EntryHash != "" {
			last = e.EntryHash
		}
	}
	return last
}
