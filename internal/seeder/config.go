// Package seeder fills a running API with generated participants, schedule
// entries and moderated claims, then checks the leaderboard against the
// approvals it made.
package seeder

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid seeder config")

// Config controls a seeding run.
type Config struct {
	BaseURL      string        // API base URL
	Admin        string        // administrator used for setup
	Participants int           // participants to create
	Days         int           // days of schedule ending today
	Attendance   float64       // chance a participant claims an entry
	ApproveRatio float64       // chance the moderator approves a claim
	Workers      int           // concurrent submitters
	Timeout      time.Duration // per request
	Seed         int64         // generator seed; 0 picks one from the clock
}

// DefaultConfig returns the settings used by the seed command.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:9080",
		Admin:        "admin",
		Participants: 20,
		Days:         28,
		Attendance:   0.4,
		ApproveRatio: 0.8,
		Workers:      runtime.NumCPU() * 2,
		Timeout:      10 * time.Second,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Admin == "":
		return fmt.Errorf("%w: admin is required", ErrInvalidConfig)
	case c.Participants <= 0 || c.Days <= 0 || c.Workers <= 0:
		return fmt.Errorf("%w: participants, days and workers must be positive", ErrInvalidConfig)
	case c.Attendance < 0 || c.Attendance > 1 || c.ApproveRatio < 0 || c.ApproveRatio > 1:
		return fmt.Errorf("%w: ratios must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	ParticipantsCreated int
	EventsScheduled     int
	ClaimsSubmitted     int
	ClaimsSkipped       int
	ClaimsThrottled     int
	ClaimsFailed        int
	Approved            int
	Rejected            int
	LeaderboardEntries  int
	Duration            time.Duration
}
