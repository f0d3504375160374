package loadtest

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/rehearsal/pkg/logger"
)

// Window generation bounds, in minutes after midnight.
const (
	granularityMinutes = 15
	earliestStart      = 6 * 60
	latestStart        = 22 * 60
	minLength          = 30
	maxLength          = 4 * 60
	endOfDay           = 24 * 60
	maxWindowsPerUser  = 4
	daysPerWeek        = 7
)

// randomInt returns a uniform value in [0, n).
func randomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// randomStep returns a multiple of granularityMinutes in [lo, hi].
func randomStep(lo, hi int) int {
	steps := (hi-lo)/granularityMinutes + 1
	return lo + randomInt(steps)*granularityMinutes
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// generateWeek returns up to maxWindowsPerUser recurring windows. Windows on
// the same day may overlap.
func generateWeek() []Entry {
	n := randomInt(maxWindowsPerUser + 1)
	out := make([]Entry, 0, n)
	for range n {
		start := randomStep(earliestStart, latestStart)
		end := min(start+randomStep(minLength, maxLength), endOfDay)
		out = append(out, Entry{
			Day:       randomInt(daysPerWeek),
			Start:     clock(start),
			End:       clock(end),
			Recurring: true,
		})
	}
	return out
}

// generateFixture creates the groups, members and weeks to submit.
func generateFixture(ctx context.Context, config *Config, stats *Stats) []Group {
	groups := make([]Group, config.Groups)
	for i := range groups {
		g := Group{ID: uuid.NewString(), Members: make([]Member, config.MembersPerGroup)}
		for j := range g.Members {
			week := generateWeek()
			g.Members[j] = Member{UserID: uuid.NewString(), Availability: week}
			stats.WindowsGenerated += len(week)
		}
		groups[i] = g
		stats.MembersGenerated += len(g.Members)
	}
	stats.GroupsGenerated = len(groups)

	logger.Get().Info(ctx, "fixture generated",
		logger.Int("groups", stats.GroupsGenerated),
		logger.Int("members", stats.MembersGenerated),
		logger.Int("windows", stats.WindowsGenerated))
	return groups
}
