// Package types contains the response shapes shared by the service, the
// cache and the HTTP API.
package types

import (
	"github.com/okian/rehearsal/internal/domain/availability"
	"github.com/okian/rehearsal/internal/domain/ranking"
)

// Slot is one ranked rehearsal window.
type Slot struct {
	Start            availability.Clock `json:"start"`
	End              availability.Clock `json:"end"`
	MemberCount      int                `json:"memberCount"`
	MemberPercentage float64            `json:"memberPercentage"`
	Members          []string           `json:"members,omitempty"`
}

// DayResult holds one weekday's ranked windows.
type DayResult struct {
	Day     int    `json:"day"`
	DayName string `json:"dayName"`
	Slots   []Slot `json:"slots"`
}

// OptimalTimes is the full weekly answer for a group.
type OptimalTimes struct {
	GroupID      string      `json:"groupId"`
	TotalMembers int         `json:"totalMembers"`
	Days         []DayResult `json:"days"`
}

// FromRanking converts planner output into response shapes.
func FromRanking(days []ranking.DayResult) []DayResult {
	out := make([]DayResult, len(days))
	for i, d := range days {
		slots := make([]Slot, len(d.Slots))
		for j, s := range d.Slots {
			slots[j] = Slot{
				Start:            s.Start,
				End:              s.End,
				MemberCount:      s.MemberCount,
				MemberPercentage: s.MemberPercentage,
				Members:          s.Members,
			}
		}
		out[i] = DayResult{Day: int(d.Day), DayName: d.DayName, Slots: slots}
	}
	return out
}
