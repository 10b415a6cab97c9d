// Package identity resolves login names to numeric POSIX identities.
package identity

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
)

// ErrUnknownUser is returned when the directory has no entry for the name.
var ErrUnknownUser = errors.New("identity: unknown user")

// Account is the subset of a passwd entry the broker needs.
type Account struct {
	Username string
	UID      uint32
	GID      uint32
	Groups   []uint32
	HomeDir  string
}

// Resolver looks up accounts by login name.
type Resolver interface {
	Lookup(username string) (*Account, error)
}

// System resolves through the host's NSS configuration.
type System struct{}

func (System) Lookup(username string) (*Account, error) {
	if username == "" {
		return nil, ErrUnknownUser
	}
	u, err := user.Lookup(username)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownUser, username)
		}
		return nil, fmt.Errorf("identity: lookup %s: %w", username, err)
	}

	uid, err := parseID(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("identity: uid of %s: %w", username, err)
	}
	gid, err := parseID(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("identity: gid of %s: %w", username, err)
	}

	acct := &Account{
		Username: u.Username,
		UID:      uid,
		GID:      gid,
		HomeDir:  u.HomeDir,
	}

	// Supplementary groups are only needed when dropping privileges; a
	// failed lookup leaves the primary group alone.
	if ids, err := u.GroupIds(); err == nil {
		for _, id := range ids {
			if g, err := parseID(id); err == nil {
				acct.Groups = append(acct.Groups, g)
			}
		}
	}
	return acct, nil
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// RuntimeDir is the per-user runtime directory logind manages for uid.
func RuntimeDir(uid uint32) string {
	return "/run/user/" + strconv.FormatUint(uint64(uid), 10)
}
