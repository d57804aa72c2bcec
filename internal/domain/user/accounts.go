package user

import "strings"

// AccountSet is a case-insensitive set of user ids that are always treated as system accounts.
type AccountSet map[string]struct{}

// ParseAccountSet reads ids separated by commas or semicolons.
func ParseAccountSet(s string) AccountSet {
	set := AccountSet{}
	for _, id := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if id = strings.TrimSpace(id); id != "" {
			set[strings.ToLower(id)] = struct{}{}
		}
	}
	return set
}

func (s AccountSet) Contains(id string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(id))]
	return ok
}

// Classify promotes u to the system group when its id is listed in system.
func Classify(u *User, system AccountSet) *User {
	if u == nil || !system.Contains(u.ID) {
		return u
	}
	promoted := *u
	promoted.Group = GroupSystem
	return &promoted
}
