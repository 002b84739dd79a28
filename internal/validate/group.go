package validate

import (
	"fmt"
	"unicode/utf8"
)

// MaxGroupNameBytes is the wire-format limit for an advertised group name
// (§4.A / §6: manufacturer data block, UTF-8, truncated on a code-point
// boundary to at most this many bytes).
const MaxGroupNameBytes = 20

// GroupName checks that a group name is non-empty, valid UTF-8, and fits
// the advertising budget without needing truncation. Callers that accept
// a longer name should truncate with TruncateUTF8 before advertising
// rather than rejecting it here; this validates names supplied directly
// by a user for createGroup/joinGroup.
func GroupName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidGroupName)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: name must be valid UTF-8", ErrInvalidGroupName)
	}
	if len(name) > MaxGroupNameBytes {
		return fmt.Errorf("%w: %q exceeds %d-byte advertising budget", ErrInvalidGroupName, name, MaxGroupNameBytes)
	}
	return nil
}

// AccessCode checks that an access code is non-empty. The code itself is
// never transmitted (only its hash bound to a fresh nonce, see the
// handshake protocol), so no format beyond "non-empty" is mandated here.
func AccessCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: access code cannot be empty", ErrInvalidAccessCode)
	}
	return nil
}
