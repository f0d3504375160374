// Package loadtest drives a running planner over HTTP with generated groups
// and checks every served ranking against a local plan.
package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/rehearsal/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
	percentMultiplier   = 100
)

// Run executes the complete load test.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting rehearsal load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("groups", config.Groups),
		logger.Int("membersPerGroup", config.MembersPerGroup),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate groups and weeks
	groups := generateFixture(ctx, config, stats)

	// Step 3: Join every member, then write every week
	submit(ctx, config, "join", joinRequests(groups), stats)
	submit(ctx, config, "availability", availabilityRequests(groups), stats)
	if stats.RequestsFailed > 0 {
		return stats, fmt.Errorf("%d of %d writes failed", stats.RequestsFailed, stats.RequestsSubmitted)
	}

	// Step 4: Let background refreshes drain
	if config.SettleTime > 0 {
		logger.Get().Info(ctx, "waiting for refreshes", logger.Duration("settle", config.SettleTime))
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-time.After(config.SettleTime):
		}
	}

	// Step 5: Read and verify
	verifyErr := verifyGroups(ctx, config, groups, stats)

	// Step 6: Save fixture
	if config.OutputFile != "" {
		if err := saveFixture(ctx, config.OutputFile, groups); err != nil {
			logger.Get().Warn(ctx, "failed to save fixture", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if verifyErr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verifyErr)
	}
	logger.Get().Info(ctx, "test completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")
	if err := newHTTPClient(config).do(ctx, http.MethodGet, "/healthz", "", nil, nil, http.StatusOK); err != nil {
		return err
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveFixture writes the generated groups to filename as JSON.
func saveFixture(ctx context.Context, filename string, groups []Group) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}

	logger.Get().Info(ctx, "fixture saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, requestsPerSecond float64
	if stats.RequestsSubmitted > 0 {
		ok := stats.RequestsSubmitted - stats.RequestsFailed
		successRate = float64(ok) / float64(stats.RequestsSubmitted) * percentMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(stats.RequestsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("groupsGenerated", stats.GroupsGenerated),
		logger.Int("membersGenerated", stats.MembersGenerated),
		logger.Int("windowsGenerated", stats.WindowsGenerated),
		logger.Int("requestsSubmitted", stats.RequestsSubmitted),
		logger.Int("requestsFailed", stats.RequestsFailed),
		logger.Int("groupsVerified", stats.GroupsVerified),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("requestsPerSecond", requestsPerSecond))
}
