package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("login1")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("session created", "sessionId", "c2")

	out := buf.String()
	if !strings.Contains(out, `msg="session created"`) {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=login1") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "sessionId=c2") {
		t.Fatalf("expected sessionId field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("auth")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	WithLogin(L("sessionbroker"), "alice", "seat0").Debug("login started")

	out := buf.String()
	for _, want := range []string{`"username":"alice"`, `"seat":"seat0"`, `"component":"sessionbroker"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestInitSwitchesBetweenTextAndJSON(t *testing.T) {
	logger := L("config")

	var text, js bytes.Buffer
	Init("text", "info", &text)
	logger.Info("first")
	Init("json", "info", &js)
	logger.Info("second")
	Init("text", "info", &text)
	logger.Info("third")

	if !strings.Contains(text.String(), "msg=first") || !strings.Contains(text.String(), "msg=third") {
		t.Fatalf("text output missing records: %s", text.String())
	}
	if !strings.Contains(js.String(), `"msg":"second"`) || !strings.Contains(js.String(), `"component":"config"`) {
		t.Fatalf("json output missing record: %s", js.String())
	}
	if strings.Contains(js.String(), "first") || strings.Contains(js.String(), "third") {
		t.Fatalf("json output got records from text phases: %s", js.String())
	}
}

func TestFileSinkShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.log")
	sink, err := OpenFileSink(path, 1, 2)
	if err != nil {
		t.Fatalf("OpenFileSink: %v", err)
	}
	defer sink.Close()
	sink.limit = 16

	for i := 0; i < 3; i++ {
		if _, err := sink.Write([]byte("0123456789\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected first backup: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Fatalf("expected second backup: %v", err)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("backup beyond maxBackups should not exist, err=%v", err)
	}
}

func TestFileSinkReopenFollowsMovedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.log")
	sink, err := OpenFileSink(path, 0, 0)
	if err != nil {
		t.Fatalf("OpenFileSink: %v", err)
	}
	defer sink.Close()

	sink.Write([]byte("before\n"))
	if err := os.Rename(path, path+".old"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := sink.Reopen(); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	sink.Write([]byte("after\n"))

	if got := readFile(t, path); got != "after\n" {
		t.Fatalf("new file = %q, want only the post-reopen line", got)
	}
	if got := readFile(t, path+".old"); got != "before\n" {
		t.Fatalf("moved file = %q", got)
	}
}

func TestFileSinkWriteAfterClose(t *testing.T) {
	sink, err := OpenFileSink(filepath.Join(t.TempDir(), "broker.log"), 0, 0)
	if err != nil {
		t.Fatalf("OpenFileSink: %v", err)
	}
	sink.Close()
	if _, err := sink.Write([]byte("late\n")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("write after close: %v", err)
	}
	if err := sink.Reopen(); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("reopen after close: %v", err)
	}
}

func TestInitFileWithoutPath(t *testing.T) {
	var console bytes.Buffer
	closer, err := InitFile("json", "info", &console, "", 0, 0)
	if err != nil {
		t.Fatalf("InitFile: %v", err)
	}
	L("cmd").Info("console only")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(console.String(), `"msg":"console only"`) {
		t.Fatalf("console output = %s", console.String())
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
