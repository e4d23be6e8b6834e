package session

import (
	"fmt"
	"regexp"
)

// Session names double as directory names under ~/.chirp, so the accepted
// alphabet is deliberately narrow: lowercase letters, digits, '-' and '_'.
var nameRe = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that a session name is usable as a ~/.chirp
// subdirectory.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name is empty")
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use lowercase letters, digits, '-' or '_', at most 64 characters", name)
	}
	return nil
}
