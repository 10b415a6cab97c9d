package sessionbroker

import (
	"strconv"
	"strings"
)

// envBlock is an ordered environment where later sets replace earlier
// values of the same key.
type envBlock struct {
	keys []string
	vals map[string]string
}

func newEnvBlock(base []string) *envBlock {
	e := &envBlock{vals: make(map[string]string, len(base))}
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		e.set(k, v)
	}
	return e
}

func (e *envBlock) set(k, v string) {
	if _, ok := e.vals[k]; !ok {
		e.keys = append(e.keys, k)
	}
	e.vals[k] = v
}

func (e *envBlock) environ() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.vals[k])
	}
	return out
}

// childEnv builds the environment of the program started in s. base is the
// inherited environment, nil when inheritance is off.
func childEnv(base []string, s *Session, sessionType, sessionClass string, vt uint32, user *userEnv) []string {
	e := newEnvBlock(base)
	e.set("XDG_RUNTIME_DIR", s.RuntimeDir)
	e.set("XDG_SESSION_ID", s.ID)
	e.set("XDG_SESSION_TYPE", sessionType)
	e.set("XDG_SESSION_CLASS", sessionClass)
	if s.Seat != "" {
		e.set("XDG_SEAT", s.Seat)
	}
	if vt > 0 {
		e.set("XDG_VTNR", strconv.FormatUint(uint64(vt), 10))
	}
	if user != nil {
		e.set("HOME", user.home)
		e.set("USER", user.name)
		e.set("LOGNAME", user.name)
	}
	return e.environ()
}

// userEnv carries the identity variables set when the child no longer runs
// as the broker's user.
type userEnv struct {
	name string
	home string
}
