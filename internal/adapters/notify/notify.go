// Package notify announces freshly computed rankings to subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/okian/rehearsal/internal/domain/model"
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("publish timeout")

// Publisher sends ranking updates.
type Publisher interface {
	Publish(ctx context.Context, update model.RankingUpdated) error
	Close() error
}

// Payload is the wire form of a ranking update.
type Payload struct {
	GroupID      string        `json:"groupId"`
	TotalMembers int           `json:"totalMembers"`
	ComputedAt   string        `json:"computedAt"`
	Best         []BestPayload `json:"best"`
}

// BestPayload is the top window of one weekday.
type BestPayload struct {
	Day              int     `json:"day"`
	DayName          string  `json:"dayName"`
	Start            string  `json:"start"`
	End              string  `json:"end"`
	MemberCount      int     `json:"memberCount"`
	MemberPercentage float64 `json:"memberPercentage"`
}

// Topic returns the topic a group's updates are published on.
func Topic(prefix, groupID string) string {
	return prefix + "/groups/" + groupID + "/optimal-times"
}

// FormatPayload encodes an update as JSON. Timestamps are RFC 3339 in UTC.
func FormatPayload(update model.RankingUpdated) ([]byte, error) {
	p := Payload{
		GroupID:      update.GroupID,
		TotalMembers: update.TotalMembers,
		ComputedAt:   update.ComputedAt.UTC().Format(time.RFC3339),
		Best:         make([]BestPayload, len(update.Best)),
	}
	for i, b := range update.Best {
		p.Best[i] = BestPayload(b)
	}
	return json.Marshal(p)
}

// NopPublisher drops every update.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, model.RankingUpdated) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
