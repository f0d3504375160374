package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/rehearsal/internal/domain/availability"
	"github.com/okian/rehearsal/internal/domain/ranking"
	"github.com/okian/rehearsal/internal/domain/types"
	"github.com/okian/rehearsal/pkg/logger"
)

// ErrMismatch reports served rankings that differ from a local plan.
var ErrMismatch = errors.New("served ranking differs from local plan")

// expected plans a group locally from the generated fixture.
func expected(g Group) (types.OptimalTimes, error) {
	ids := make([]string, len(g.Members))
	var records []availability.Record
	for i, m := range g.Members {
		ids[i] = m.UserID
		for _, e := range m.Availability {
			r, err := toRecord(m.UserID, e)
			if err != nil {
				return types.OptimalTimes{}, err
			}
			records = append(records, r)
		}
	}

	days, err := ranking.NewPlanner().Plan(records, ids)
	if err != nil {
		return types.OptimalTimes{}, err
	}
	return types.OptimalTimes{GroupID: g.ID, TotalMembers: len(ids), Days: types.FromRanking(days)}, nil
}

func toRecord(userID string, e Entry) (availability.Record, error) {
	day, err := availability.ParseWeekday(e.Day)
	if err != nil {
		return availability.Record{}, err
	}
	start, err := availability.ParseClock(e.Start)
	if err != nil {
		return availability.Record{}, err
	}
	end, err := availability.ParseClock(e.End)
	if err != nil {
		return availability.Record{}, err
	}
	return availability.Record{UserID: userID, Day: day, Start: start, End: end, Recurring: e.Recurring}, nil
}

// compare returns a description of the first difference, or "" when the
// rankings agree on every slot's window and member count.
func compare(want, got types.OptimalTimes) string {
	if want.TotalMembers != got.TotalMembers {
		return fmt.Sprintf("totalMembers: want %d, got %d", want.TotalMembers, got.TotalMembers)
	}
	if len(want.Days) != len(got.Days) {
		return fmt.Sprintf("days: want %d, got %d", len(want.Days), len(got.Days))
	}
	for d := range want.Days {
		ws, gs := want.Days[d].Slots, got.Days[d].Slots
		if len(ws) != len(gs) {
			return fmt.Sprintf("%s: want %d slots, got %d", want.Days[d].DayName, len(ws), len(gs))
		}
		for i := range ws {
			if ws[i].Start != gs[i].Start || ws[i].End != gs[i].End || ws[i].MemberCount != gs[i].MemberCount {
				return fmt.Sprintf("%s slot %d: want %s-%s x%d, got %s-%s x%d", want.Days[d].DayName, i,
					ws[i].Start, ws[i].End, ws[i].MemberCount, gs[i].Start, gs[i].End, gs[i].MemberCount)
			}
		}
	}
	return ""
}

// verifyGroups reads every group's ranking and checks it against a local plan.
func verifyGroups(ctx context.Context, config *Config, groups []Group, stats *Stats) error {
	logger.Get().Info(ctx, "verifying rankings", logger.Int("groups", len(groups)))
	client := newHTTPClient(config)

	for _, g := range groups {
		if len(g.Members) == 0 {
			continue
		}
		want, err := expected(g)
		if err != nil {
			return fmt.Errorf("plan group %s: %w", g.ID, err)
		}

		var got types.OptimalTimes
		path := "/groups/" + g.ID + "/optimal-times"
		if err := client.do(ctx, http.MethodGet, path, g.Members[0].UserID, nil, &got, http.StatusOK); err != nil {
			return fmt.Errorf("read group %s: %w", g.ID, err)
		}
		stats.GroupsVerified++

		if diff := compare(want, got); diff != "" {
			stats.Mismatches++
			logger.Get().Warn(ctx, "ranking mismatch", logger.String("group", g.ID), logger.String("diff", diff))
		} else if config.Verbose {
			if best, ok := bestOf(got); ok {
				logger.Get().Info(ctx, "group verified",
					logger.String("group", g.ID),
					logger.String("best", best))
			}
		}
	}

	if stats.Mismatches > 0 {
		return fmt.Errorf("%w: %d of %d groups", ErrMismatch, stats.Mismatches, stats.GroupsVerified)
	}
	logger.Get().Info(ctx, "rankings verified", logger.Int("groups", stats.GroupsVerified))
	return nil
}

// bestOf describes the highest ranked slot across the week.
func bestOf(t types.OptimalTimes) (string, bool) {
	var (
		best  types.Slot
		day   string
		found bool
	)
	for _, d := range t.Days {
		if len(d.Slots) == 0 {
			continue
		}
		if !found || d.Slots[0].MemberCount > best.MemberCount {
			best, day, found = d.Slots[0], d.DayName, true
		}
	}
	if !found {
		return "", false
	}
	return fmt.Sprintf("%s %s-%s (%.0f%%)", day, best.Start, best.End, best.MemberPercentage), true
}
