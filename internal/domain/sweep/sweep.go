// Package sweep turns one day's availability records into coverage slots by
// sweeping sorted start/end boundary events.
package sweep

import (
	"sort"

	"github.com/okian/rehearsal/internal/domain/availability"
)

// Kind tells whether an event opens or closes a user's interval.
type Kind uint8

// Event kinds. Start sorts before End at the same instant.
const (
	Start Kind = iota
	End
)

func (k Kind) String() string {
	if k == Start {
		return "START"
	}
	return "END"
}

// Event is one interval boundary.
type Event struct {
	Time   availability.Clock
	Kind   Kind
	UserID string
}

// Before orders events by time ascending. At the same instant a START comes
// before an END, so an interval that ends exactly when another begins leaves
// no gap. Remaining ties are broken by user id to keep the order total.
func Before(a, b Event) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if a.Kind != b.Kind {
		return a.Kind == Start
	}
	return a.UserID < b.UserID
}

// Events emits a START and an END per record and returns them sorted with Before.
func Events(records []availability.Record) []Event {
	events := make([]Event, 0, len(records)*2)
	for _, r := range records {
		events = append(events,
			Event{Time: r.Start, Kind: Start, UserID: r.UserID},
			Event{Time: r.End, Kind: End, UserID: r.UserID},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return Before(events[i], events[j])
	})
	return events
}

// Slot is a maximal stretch of one day during which the same members are free.
type Slot struct {
	Day     availability.Weekday
	Start   availability.Clock
	End     availability.Clock
	Members []string // sorted ascending
}

// MemberCount is the number of distinct members covering the slot.
func (s Slot) MemberCount() int { return len(s.Members) }

// Day sweeps the records of a single weekday and returns its coverage slots in
// start-time order. Records for other days must be filtered out by the caller.
// Stretches with nobody available produce no slot.
func Day(day availability.Weekday, records []availability.Record) []Slot {
	if len(records) == 0 {
		return nil
	}
	s := newSweeper(day)
	for _, ev := range Events(records) {
		s.step(ev)
	}
	return s.slots
}

// sweeper holds the running state of one pass.
type sweeper struct {
	day availability.Weekday
	// active counts open intervals per user. A user with overlapping records
	// stays covered until the last one ends but is counted once.
	active  map[string]int
	prev    availability.Clock
	started bool
	slots   []Slot
}

func newSweeper(day availability.Weekday) *sweeper {
	return &sweeper{day: day, active: make(map[string]int)}
}

// step closes the slot that elapsed since the previous boundary, using the
// active set as it was before ev, then applies ev.
func (s *sweeper) step(ev Event) {
	if s.started && len(s.active) > 0 && ev.Time > s.prev {
		s.emit(Slot{Day: s.day, Start: s.prev, End: ev.Time, Members: s.members()})
	}

	switch ev.Kind {
	case Start:
		s.active[ev.UserID]++
	case End:
		if s.active[ev.UserID] <= 1 {
			delete(s.active, ev.UserID)
		} else {
			s.active[ev.UserID]--
		}
	}

	s.prev = ev.Time
	s.started = true
}

// emit appends slot, extending the previous one instead when they touch and
// cover the same members.
func (s *sweeper) emit(slot Slot) {
	if n := len(s.slots); n > 0 {
		last := &s.slots[n-1]
		if last.End == slot.Start && sameMembers(last.Members, slot.Members) {
			last.End = slot.End
			return
		}
	}
	s.slots = append(s.slots, slot)
}

func (s *sweeper) members() []string {
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
