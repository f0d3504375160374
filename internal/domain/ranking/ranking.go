// Package ranking computes, for every day of the week, the windows in which
// the most group members are free at the same time.
//
// The computation is pure: a Planner holds only options, and Plan works on
// the values passed to it. It is safe to call from many goroutines.
package ranking

import (
	"sort"

	"github.com/okian/rehearsal/internal/domain/availability"
	"github.com/okian/rehearsal/internal/domain/sweep"
)

// percentScale converts a ratio to a percentage.
const percentScale = 100

// Slot is a ranked coverage window.
type Slot struct {
	Start            availability.Clock
	End              availability.Clock
	Members          []string
	MemberCount      int
	MemberPercentage float64
}

// DayResult holds the ranked slots of one weekday.
type DayResult struct {
	Day     availability.Weekday
	DayName string
	Slots   []Slot
}

// Option applies a configuration option to the Planner.
type Option func(*Planner)

// WithStrictIntervals makes zero-length records (start == end) an error
// instead of a no-op.
func WithStrictIntervals(strict bool) Option {
	return func(p *Planner) {
		p.strict = strict
	}
}

// Planner ranks availability windows for a group.
type Planner struct {
	strict bool
}

// NewPlanner creates a Planner with configuration options.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns exactly seven DayResults, Sunday first. memberIDs is the group
// roster; its distinct size is the denominator for percentages. Non-recurring
// records and records of users outside the roster are ignored. The first
// invalid record aborts the plan with an *availability.InvalidIntervalError.
func (p *Planner) Plan(records []availability.Record, memberIDs []string) ([]DayResult, error) {
	roster := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		roster[id] = struct{}{}
	}
	if len(roster) == 0 {
		return Format(Aggregate(nil), 0), nil
	}

	considered := make([]availability.Record, 0, len(records))
	for _, r := range records {
		if !r.Recurring {
			continue
		}
		if _, ok := roster[r.UserID]; !ok {
			continue
		}
		if err := r.Validate(p.strict); err != nil {
			return nil, err
		}
		considered = append(considered, r)
	}

	return Format(Aggregate(considered), len(roster)), nil
}

// Aggregate sweeps each weekday independently and orders every day's slots by
// member count, highest first. Records must already be valid.
func Aggregate(records []availability.Record) []DayResult {
	byDay := availability.ByDay(records)
	days := make([]DayResult, 0, availability.DaysPerWeek)
	for _, day := range availability.Weekdays() {
		slots := Rank(sweep.Day(day, byDay[day]))
		out := make([]Slot, len(slots))
		for i, s := range slots {
			out[i] = Slot{
				Start:       s.Start,
				End:         s.End,
				Members:     s.Members,
				MemberCount: s.MemberCount(),
			}
		}
		days = append(days, DayResult{Day: day, DayName: day.String(), Slots: out})
	}
	return days
}

// Rank returns a copy of slots sorted by member count descending. Equal
// counts keep start-time order.
func Rank(slots []sweep.Slot) []sweep.Slot {
	ranked := make([]sweep.Slot, len(slots))
	copy(ranked, slots)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MemberCount() != ranked[j].MemberCount() {
			return ranked[i].MemberCount() > ranked[j].MemberCount()
		}
		return ranked[i].Start < ranked[j].Start
	})
	return ranked
}

// Format attaches member percentages relative to totalMembers. An empty group
// yields seven days without slots.
func Format(days []DayResult, totalMembers int) []DayResult {
	out := make([]DayResult, len(days))
	for i, d := range days {
		out[i] = DayResult{Day: d.Day, DayName: d.DayName, Slots: []Slot{}}
		if totalMembers <= 0 {
			continue
		}
		for _, s := range d.Slots {
			s.MemberPercentage = float64(s.MemberCount) / float64(totalMembers) * percentScale
			out[i].Slots = append(out[i].Slots, s)
		}
	}
	return out
}

// Best returns the top slot of a day, if any.
func (d DayResult) Best() (Slot, bool) {
	if len(d.Slots) == 0 {
		return Slot{}, false
	}
	return d.Slots[0], true
}
