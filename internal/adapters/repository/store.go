// Package repository defines the availability store interface and its
// in-memory and PostgreSQL implementations.
package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/rehearsal/internal/domain/availability"
)

// Store provides read/write access to group rosters and member availability.
type Store interface {
	// Members returns the distinct user ids of a group in join order.
	// Returns ErrNotFound if the group has no members.
	Members(ctx context.Context, groupID string) ([]string, error)

	// IsMember reports whether userID belongs to groupID.
	IsMember(ctx context.Context, groupID, userID string) (bool, error)

	// GroupsOf returns the groups a user belongs to.
	GroupsOf(ctx context.Context, userID string) ([]string, error)

	// Availability returns the recurring records of the given users ordered
	// by day, then start time, then user id.
	Availability(ctx context.Context, userIDs []string) ([]availability.Record, error)

	// ReplaceAvailability swaps a user's recurring records for records.
	ReplaceAvailability(ctx context.Context, userID string, records []availability.Record) error

	// AddMember adds userID to groupID. Adding an existing member is a no-op.
	AddMember(ctx context.Context, groupID, userID string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// CanonicalID returns the single spelling ids are stored and compared in.
// Anything uuid.Parse accepts (upper case, braces, urn:uuid:) becomes the
// lower-case hyphenated form; other ids are only trimmed.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

// lessRecord orders records the way Availability promises.
func lessRecord(a, b availability.Record) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.UserID < b.UserID
}
