package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/rehearsal/internal/loadtest"
)

// Default configuration constants.
const (
	defaultGroups      = 100
	defaultMembers     = 8
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSettle      = 2 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		groups     = flag.Int("groups", defaultGroups, "Number of groups to create")
		members    = flag.Int("members", defaultMembers, "Members per group")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "Wait between writes and reads")
		outputFile = flag.String("output", "", "Write the generated fixture to this JSON file")
		logFile    = flag.String("log", loadtest.DefaultLogFile(), "Log file for test output")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	closeLog, err := loadtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)

	_, err = loadtest.Run(ctx, &loadtest.Config{
		BaseURL:         *baseURL,
		Groups:          *groups,
		MembersPerGroup: *members,
		Workers:         *workers,
		Timeout:         *timeout,
		SettleTime:      *settle,
		OutputFile:      *outputFile,
		Verbose:         *verbose,
	})
	cancel()
	_ = closeLog()
	if err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
