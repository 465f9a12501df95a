// Package idgen generates entity UIDs and short, URL-safe job and event IDs.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// JobPrefix is prepended to every generated job ID.
var JobPrefix = "job-"

// EventPrefix is prepended to every published event ID.
var EventPrefix = "evt-"

// Alphabet defines the character set used for the random portion of job IDs.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters in a job ID (excluding the prefix).
var Length = 12

// UID returns a new project config UID. UIDs are random v4 UUIDs so that
// config copied between environments never collides.
func UID() string {
	return uuid.NewString()
}

// IsUID reports whether s parses as a UUID.
func IsUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// JobID returns a new job ID using the default prefix.
func JobID() (string, error) {
	return GenerateWithPrefix(JobPrefix)
}

// EventID returns a new event ID.
func EventID() (string, error) {
	return GenerateWithPrefix(EventPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
