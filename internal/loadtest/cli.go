package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/rehearsal/pkg/logger"
)

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well. The returned function closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	var (
		out     io.Writer = os.Stdout
		closeFn           = func() error { return nil }
	)
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = file.Close
	}

	if err := logger.Init(logger.WithOutput(out)); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// DefaultLogFile returns a timestamped log file name.
func DefaultLogFile() string {
	return "loadtest_" + time.Now().Format("20060102_150405") + ".log"
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Rehearsal Planner Load Test
===========================

Creates random groups, joins their members, writes random weekly
availability and checks that every served ranking matches a local plan.
The target server must run without a JWT secret (X-User-ID header mode).

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -groups int
        Number of groups to create (default 100)
  -members int
        Members per group (default 8)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        Wait between writes and reads (default 2s)
  -output string
        Write the generated fixture to this JSON file
  -log string
        Log file for test output (default: loadtest_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message
`)
}
