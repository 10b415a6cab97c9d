package login1

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// CreatedSession is the decoded CreateSession reply. Only ID and Path are
// required; the remaining fields are filled when the manager sends the full
// "soshusub" reply.
type CreatedSession struct {
	ID          string
	Path        dbus.ObjectPath
	RuntimePath string
	FIFO        int // -1 when no descriptor was received
	UID         uint32
	Seat        string
	VTNr        uint32
	Existing    bool
}

// ParseCreateReply decodes a CreateSession reply body. It never returns a
// partially filled session: a missing or mistyped id or path is an error.
func ParseCreateReply(body []any) (*CreatedSession, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("%w: %d fields, want at least session id and path", ErrMalformedReply, len(body))
	}

	id, ok := body[0].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: session id is %T %v", ErrMalformedReply, body[0], body[0])
	}
	path, ok := body[1].(dbus.ObjectPath)
	if !ok || path == "" || !path.IsValid() {
		return nil, fmt.Errorf("%w: session path is %T %v", ErrMalformedReply, body[1], body[1])
	}

	s := &CreatedSession{ID: id, Path: path, FIFO: -1}
	rest := body[2:]
	if len(rest) > 0 {
		s.RuntimePath, _ = rest[0].(string)
	}
	if len(rest) > 1 {
		switch fd := rest[1].(type) {
		case dbus.UnixFD:
			s.FIFO = int(fd)
		case dbus.UnixFDIndex:
			// Descriptor not passed (connection without fd support).
		}
	}
	if len(rest) > 2 {
		s.UID, _ = rest[2].(uint32)
	}
	if len(rest) > 3 {
		s.Seat, _ = rest[3].(string)
	}
	if len(rest) > 4 {
		s.VTNr, _ = rest[4].(uint32)
	}
	if len(rest) > 5 {
		s.Existing, _ = rest[5].(bool)
	}
	return s, nil
}

// SessionEntry is one row of Manager.ListSessions.
type SessionEntry struct {
	ID   string          `json:"id" yaml:"id"`
	UID  uint32          `json:"uid" yaml:"uid"`
	User string          `json:"user" yaml:"user"`
	Seat string          `json:"seat,omitempty" yaml:"seat,omitempty"`
	Path dbus.ObjectPath `json:"path" yaml:"path"`
}

func parseSessionList(body []any) ([]SessionEntry, error) {
	if len(body) != 1 {
		return nil, fmt.Errorf("%w: ListSessions returned %d fields", ErrMalformedReply, len(body))
	}
	rows, ok := body[0].([][]any)
	if !ok {
		return nil, fmt.Errorf("%w: ListSessions body is %T", ErrMalformedReply, body[0])
	}

	entries := make([]SessionEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) != 5 {
			return nil, fmt.Errorf("%w: session row %d has %d fields", ErrMalformedReply, i, len(row))
		}
		var e SessionEntry
		var ok [5]bool
		e.ID, ok[0] = row[0].(string)
		e.UID, ok[1] = row[1].(uint32)
		e.User, ok[2] = row[2].(string)
		e.Seat, ok[3] = row[3].(string)
		e.Path, ok[4] = row[4].(dbus.ObjectPath)
		for j, good := range ok {
			if !good {
				return nil, fmt.Errorf("%w: session row %d field %d is %T", ErrMalformedReply, i, j, row[j])
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
