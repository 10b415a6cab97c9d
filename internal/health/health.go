// Package health collects preflight probe results for the broker's
// dependencies.
package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Dennisbonke/wayland-greeter/internal/logging"
)

var log = logging.L("health")

// Status represents the result of one probe.
type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case Healthy, Degraded, Unhealthy:
		return true
	}
	return false
}

// Check stores the latest result for a named dependency.
type Check struct {
	Name      string        `json:"name" yaml:"name"`
	Status    Status        `json:"status" yaml:"status"`
	Message   string        `json:"message,omitempty" yaml:"message,omitempty"`
	Took      time.Duration `json:"took" yaml:"took"`
	CheckedAt time.Time     `json:"checkedAt" yaml:"checkedAt"`
}

// Probe tests one dependency.
type Probe struct {
	Name string
	Run  func(ctx context.Context) (Status, string)
}

// Monitor tracks probe results.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		checks: make(map[string]Check),
	}
}

// Update records the status for a named dependency. An unknown status is
// stored as Unhealthy.
func (m *Monitor) Update(name string, status Status, message string) {
	m.record(Check{Name: name, Status: status, Message: message, CheckedAt: time.Now()})
}

func (m *Monitor) record(c Check) {
	if !c.Status.IsValid() {
		c.Status = Unhealthy
	}
	m.mu.Lock()
	m.checks[c.Name] = c
	m.mu.Unlock()

	if c.Status != Healthy {
		log.Warn("preflight check failed", "check", c.Name, "status", string(c.Status), "message", c.Message)
	}
}

// RunAll runs each probe in order, bounding every probe by timeout.
func (m *Monitor) RunAll(ctx context.Context, timeout time.Duration, probes ...Probe) {
	for _, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		status, msg := p.Run(pctx)
		cancel()
		m.record(Check{Name: p.Name, Status: status, Message: msg, Took: time.Since(start), CheckedAt: start})
	}
}

// Get returns the check for a named dependency.
func (m *Monitor) Get(name string) (Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall returns the worst status across all checks; Healthy when there
// are none.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	worst := Healthy
	for _, c := range m.checks {
		if worse(c.Status, worst) {
			worst = c.Status
		}
	}
	return worst
}

// All returns a snapshot of all checks sorted by name.
func (m *Monitor) All() []Check {
	m.mu.RLock()
	result := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		result = append(result, c)
	}
	m.mu.RUnlock()

	slices.SortFunc(result, func(a, b Check) int { return strings.Compare(a.Name, b.Name) })
	return result
}

// worse returns true if a is worse than b.
func worse(a, b Status) bool {
	return statusRank(a) > statusRank(b)
}

func statusRank(s Status) int {
	switch s {
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	default:
		return 0
	}
}
