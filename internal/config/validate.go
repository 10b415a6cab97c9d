package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Same shape logind accepts for seat names.
var seatNameRegex = regexp.MustCompile(`^seat[A-Za-z0-9_-]*$`)

var knownSessionTypes = map[string]bool{
	"unspecified": true,
	"tty":         true,
	"x11":         true,
	"wayland":     true,
	"mir":         true,
	"web":         true,
}

var knownSessionClasses = map[string]bool{
	"user":        true,
	"user-early":  true,
	"greeter":     true,
	"lock-screen": true,
	"background":  true,
	"manager":     true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

const (
	maxVT                 = 63
	maxManagerCallTimeout = 300
)

// ValidationResult splits problems into fatals, which must stop the broker,
// and warnings, which were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// All returns fatals followed by warnings.
func (r ValidationResult) All() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	return append(all, r.Warnings...)
}

// ValidateTiered checks the config. Values that would break a login but
// have an obvious safe substitute are clamped and reported as warnings;
// everything else is fatal. Every problem is logged.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult
	fatal := func(format string, args ...any) {
		r.Fatals = append(r.Fatals, fmt.Errorf(format, args...))
	}
	warn := func(format string, args ...any) {
		r.Warnings = append(r.Warnings, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.PAMService) == "" {
		fatal("pam_service must not be empty")
	} else if strings.ContainsRune(c.PAMService, '/') {
		fatal("pam_service %q must be a bare service name", c.PAMService)
	}
	if strings.TrimSpace(c.SessionService) == "" {
		fatal("session_service must not be empty")
	}
	if !knownSessionTypes[c.SessionType] {
		fatal("session_type %q is not a logind session type", c.SessionType)
	}
	if c.SessionClass == "" {
		fatal("session_class must not be empty")
	} else if !knownSessionClasses[c.SessionClass] {
		warn("session_class %q is not a known logind class, logind may reject it", c.SessionClass)
	}
	if c.DefaultSeat != "" && !seatNameRegex.MatchString(c.DefaultSeat) {
		fatal("default_seat %q is not a valid seat name", c.DefaultSeat)
	}

	if c.DefaultVT < 0 {
		warn("default_vt %d is negative, using 0 (unspecified)", c.DefaultVT)
		c.DefaultVT = 0
	} else if c.DefaultVT > maxVT {
		warn("default_vt %d exceeds maximum %d, clamping", c.DefaultVT, maxVT)
		c.DefaultVT = maxVT
	}

	seen := make(map[string]bool, len(c.SessionProperties))
	for i, p := range c.SessionProperties {
		if p.Name == "" {
			fatal("session_properties[%d] has an empty name", i)
			continue
		}
		if seen[p.Name] {
			fatal("session_properties[%d] duplicates %q", i, p.Name)
		}
		seen[p.Name] = true
		if !supportedPropertyValue(p.Value) {
			fatal("session_properties[%d] %q has unsupported value type %T", i, p.Name, p.Value)
		}
	}

	if c.ManagerCallTimeoutSeconds < 1 {
		warn("manager_call_timeout_seconds %d is below minimum 1, using 25", c.ManagerCallTimeoutSeconds)
		c.ManagerCallTimeoutSeconds = 25
	} else if c.ManagerCallTimeoutSeconds > maxManagerCallTimeout {
		warn("manager_call_timeout_seconds %d exceeds maximum %d, clamping", c.ManagerCallTimeoutSeconds, maxManagerCallTimeout)
		c.ManagerCallTimeoutSeconds = maxManagerCallTimeout
	}
	if c.ProgramTimeoutSeconds < 0 {
		warn("program_timeout_seconds %d is negative, waiting without a limit", c.ProgramTimeoutSeconds)
		c.ProgramTimeoutSeconds = 0
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		warn("log_level %q is not valid (use debug, info, warn, error), using info", c.LogLevel)
		c.LogLevel = "info"
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		warn("log_format %q is not valid (use text or json), using text", c.LogFormat)
		c.LogFormat = "text"
	}

	if c.AuditEnabled && c.AuditPath == "" {
		fatal("audit_path must be set when audit_enabled is true")
	}

	return r
}

func supportedPropertyValue(v any) bool {
	switch v.(type) {
	case string, bool, int, int32, int64, uint32, uint64, float64:
		return true
	default:
		return false
	}
}
