// Package ids generates the opaque 128-bit identifiers used throughout the
// RCA orchestration core (session, turn, job, and turn-step ids). Every
// identifier is rendered as the canonical 36-character UUID string form.
package ids

import "github.com/google/uuid"

// New returns a fresh opaque identifier.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a well-formed opaque identifier.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
