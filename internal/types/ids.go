package types

import (
	"time"

	"github.com/google/uuid"
)

// NewEventID generates a UUIDv7 event identifier. Time-ordered IDs keep
// sequential inserts clustered in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEventID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewApprovalID generates a UUIDv7 approval request identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewApprovalID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ParseID validates a string as a UUID, rejecting malformed identifiers
// before they reach the store.
func ParseID(s string) (string, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return s, nil
}

// EventIDTime extracts the timestamp embedded in a UUIDv7 event ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func EventIDTime(id string) time.Time {
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
