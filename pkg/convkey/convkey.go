// Package convkey derives the deterministic conversation identifier for a
// pair of participants discussing one project. There is no stored
// conversation entity; the key is the only identity a conversation has.
package convkey

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidParticipants = errors.New("invalid participants")

const prefix = "conv"

// Resolve canonicalizes the unordered participant pair by sorting the two
// ids, so Resolve(a, b, p) == Resolve(b, a, p). Participant ids and project
// ids must not contain ':'.
func Resolve(a, b, projectID string) (string, error) {
	if a == "" || b == "" {
		return "", fmt.Errorf("%w: empty participant id", ErrInvalidParticipants)
	}
	if a == b {
		return "", fmt.Errorf("%w: participants must differ", ErrInvalidParticipants)
	}
	if projectID == "" {
		return "", fmt.Errorf("%w: empty project id", ErrInvalidParticipants)
	}
	if strings.ContainsRune(a, ':') || strings.ContainsRune(b, ':') || strings.ContainsRune(projectID, ':') {
		return "", fmt.Errorf("%w: ids must not contain ':'", ErrInvalidParticipants)
	}
	if a > b {
		a, b = b, a
	}
	return prefix + ":" + a + ":" + b + ":" + projectID, nil
}

// Parse splits a key back into its two participants and project id.
func Parse(key string) (a, b, projectID string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != prefix || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return "", "", "", fmt.Errorf("%w: malformed key %q", ErrInvalidParticipants, key)
	}
	return parts[1], parts[2], parts[3], nil
}

// IsParticipant reports whether id is one of the key's two participants.
// Malformed keys match nobody.
func IsParticipant(key, id string) bool {
	a, b, _, err := Parse(key)
	if err != nil {
		return false
	}
	return id == a || id == b
}

// Other returns the counterpart of id within the key.
func Other(key, id string) (string, error) {
	a, b, _, err := Parse(key)
	if err != nil {
		return "", err
	}
	switch id {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", fmt.Errorf("%w: %s is not a participant of %s", ErrInvalidParticipants, id, key)
}
