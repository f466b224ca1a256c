// Package idgen generates identifiers for heartbeat records: ULIDs for
// time-sortable append-only logs (telemetry sessions, cycle run IDs) and
// UUIDs for randomly-addressed records (repair tasks and queued
// inbox/maintenance tasks).
package idgen

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewULID returns a new lexically-sortable ULID seeded from the current
// time, following the pack's vsavkov-kilroy convention of using ULIDs for
// run identifiers.
func NewULID() (string, error) {
	t := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// NewUUID returns a new random UUIDv4 string.
func NewUUID() string {
	return uuid.NewString()
}
