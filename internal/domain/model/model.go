// Package model contains domain messages passed between layers.
package model

import "time"

// RefreshJob asks the worker pool to recompute one group's ranking.
type RefreshJob struct {
	GroupID     string
	Reason      string // e.g. "availability_changed", "member_joined", "manual"
	RequestedAt time.Time
}

// RankingUpdated announces a freshly computed ranking for a group.
type RankingUpdated struct {
	GroupID      string
	TotalMembers int
	ComputedAt   time.Time
	Best         []BestSlot // one entry per weekday that has any coverage
}

// BestSlot is the top-ranked window of one weekday.
type BestSlot struct {
	Day              int
	DayName          string
	Start            string
	End              string
	MemberCount      int
	MemberPercentage float64
}
