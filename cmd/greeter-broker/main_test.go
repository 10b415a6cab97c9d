package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dennisbonke/wayland-greeter/internal/logging"
)

func useConfig(t *testing.T, yaml string) *bytes.Buffer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broker.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var console bytes.Buffer
	prevFile, prevConsole := cfgFile, logConsole
	cfgFile, logConsole = path, &console
	t.Cleanup(func() {
		cfgFile, logConsole = prevFile, prevConsole
		logging.Init("text", "info", os.Stderr)
	})
	return &console
}

func TestLoadConfigLogsWarningsInConfiguredFormat(t *testing.T) {
	console := useConfig(t, "log_format: json\nsession_class: kiosk\naudit_enabled: false\n")

	cfg, closer, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	defer closer.Close()

	if cfg.SessionClass != "kiosk" {
		t.Fatalf("SessionClass = %q", cfg.SessionClass)
	}
	out := console.String()
	if strings.Count(out, "config validation") != 1 {
		t.Fatalf("want one validation record, got: %s", out)
	}
	for _, want := range []string{`"component":"config"`, `"level":"WARN"`, "kiosk"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestLoadConfigFatalIsLoggedAndReturned(t *testing.T) {
	console := useConfig(t, "log_format: json\npam_service: \"\"\naudit_enabled: false\n")

	if _, _, err := loadConfig(); err == nil || !strings.Contains(err.Error(), "pam_service") {
		t.Fatalf("loadConfig error = %v", err)
	}
	if !strings.Contains(console.String(), `"level":"ERROR"`) {
		t.Fatalf("fatal not logged: %s", console.String())
	}
}

func TestPrintConfigOnlyPrints(t *testing.T) {
	console := useConfig(t, "session_class: kiosk\naudit_enabled: false\n")
	logging.Init("text", "debug", console)

	var out, errOut bytes.Buffer
	if err := printConfig(&out, &errOut); err != nil {
		t.Fatalf("printConfig: %v", err)
	}
	if strings.Count(errOut.String(), "kiosk") != 1 || !strings.HasPrefix(errOut.String(), "warning: ") {
		t.Fatalf("errOut = %q", errOut.String())
	}
	if !strings.Contains(out.String(), "session_class: kiosk") {
		t.Fatalf("out = %q", out.String())
	}
	if console.Len() != 0 {
		t.Fatalf("printConfig logged: %s", console.String())
	}
}
