package loadtest

import "time"

// Config holds configuration for a load test run
type Config struct {
	BaseURL         string        // Base URL of the service
	Groups          int           // Number of groups to create
	MembersPerGroup int           // Members joined to each group
	Workers         int           // Number of concurrent workers
	Timeout         time.Duration // HTTP request timeout
	SettleTime      time.Duration // Wait between writes and reads
	OutputFile      string        // Optional file for the generated fixture
	Verbose         bool          // Enable verbose logging
}

// Entry is one availability window in the request body shape
type Entry struct {
	Day       int    `json:"day"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Recurring bool   `json:"recurring"`
}

// Member is a generated user and their week
type Member struct {
	UserID       string  `json:"userId"`
	Availability []Entry `json:"availability"`
}

// Group is a generated group
type Group struct {
	ID      string   `json:"id"`
	Members []Member `json:"members"`
}

// Stats holds test statistics
type Stats struct {
	GroupsGenerated   int
	MembersGenerated  int
	WindowsGenerated  int
	RequestsSubmitted int
	RequestsFailed    int
	GroupsVerified    int
	Mismatches        int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
