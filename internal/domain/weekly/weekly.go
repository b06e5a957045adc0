// Package weekly counts a participant's claims inside a Monday to Saturday window.
//
// Sunday never counts, so a Sunday attendance always scores as a first occurrence.
package weekly

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
)

// Mode selects which claim statuses are counted.
type Mode int

const (
	// ApprovedOnly counts approved claims; used by self-service accrual.
	ApprovedOnly Mode = iota
	// AllStatuses counts pending, approved and rejected claims; used by schedule-linked accrual.
	AllStatuses
)

// windowDays is Monday through Saturday inclusive.
const windowDays = 6

// Store is what the counter needs from persistence.
type Store interface {
	CountClaims(ctx context.Context, q model.ClaimCount) (int, error)
}

// WeekStart returns the Monday of d's ISO week, at midnight.
func WeekStart(d time.Time) time.Time {
	d = model.Day(d)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0, Sunday = 6
	return d.AddDate(0, 0, -offset)
}

// Window returns the inclusive [Monday, Saturday] range of the week containing d.
func Window(d time.Time) (time.Time, time.Time) {
	from := WeekStart(d)
	return from, from.AddDate(0, 0, windowDays-1)
}

// Counter counts claims per week.
type Counter struct {
	store Store
}

// New creates a Counter.
func New(store Store) *Counter {
	return &Counter{store: store}
}

// CountInWeek counts participant's claims in the week starting on weekMonday.
// Any date in the week is accepted and normalized to its Monday.
func (c *Counter) CountInWeek(ctx context.Context, participant string, weekMonday time.Time, mode Mode) (int, error) {
	return c.CountInWeekExcluding(ctx, participant, weekMonday, mode, 0)
}

// CountInWeekExcluding is CountInWeek without the claim with id excludeID.
// Zero excludes nothing.
func (c *Counter) CountInWeekExcluding(ctx context.Context, participant string, weekMonday time.Time, mode Mode, excludeID int64) (int, error) {
	from, to := Window(weekMonday)
	q := model.ClaimCount{Participant: participant, From: from, To: to, ExcludeID: excludeID}
	if mode == ApprovedOnly {
		q.Statuses = []model.Status{model.StatusApproved}
	}
	n, err := c.store.CountClaims(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("weekly.count -> %w", err)
	}
	return n, nil
}
