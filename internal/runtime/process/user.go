package process

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"syscall"
)

// ParseCredential parses USER[:GROUP[:GROUP...]] where every element is a
// name or a numeric id. The first group is the primary group and the rest are
// supplementary groups. Without groups the user's primary group is used.
func ParseCredential(value string) (*syscall.Credential, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if parts[0] == "" {
		return nil, fmt.Errorf("user %q: missing user", value)
	}

	uid, primary, err := lookupUser(parts[0])
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", value, err)
	}
	cred := &syscall.Credential{Uid: uid, Gid: primary}

	for i, name := range parts[1:] {
		gid, err := lookupGroup(name)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", value, err)
		}
		if i == 0 {
			cred.Gid = gid
			continue
		}
		cred.Groups = append(cred.Groups, gid)
	}
	return cred, nil
}

func lookupUser(name string) (uid, gid uint32, err error) {
	if id, convErr := strconv.ParseUint(name, 10, 32); convErr == nil {
		u, lookupErr := user.LookupId(name)
		if lookupErr != nil {
			// Unknown numeric ids are allowed; keep our own group.
			return uint32(id), uint32(os.Getgid()), nil
		}
		g, _ := strconv.ParseUint(u.Gid, 10, 32)
		return uint32(id), uint32(g), nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("user %s has non-numeric uid %q", name, u.Uid)
	}
	g, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("user %s has non-numeric gid %q", name, u.Gid)
	}
	return uint32(id), uint32(g), nil
}

func lookupGroup(name string) (uint32, error) {
	if name == "" {
		return 0, fmt.Errorf("empty group")
	}
	if id, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(id), nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("group %s has non-numeric gid %q", name, g.Gid)
	}
	return uint32(id), nil
}
