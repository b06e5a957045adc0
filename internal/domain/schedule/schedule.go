// Package schedule resolves schedule identifiers into event occurrences.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/acolyte/internal/domain/model"
)

// Store is what the matcher needs from persistence.
type Store interface {
	ScheduledEventByID(ctx context.Context, id int64) (model.ScheduledEvent, error)
}

// Matcher is a pure lookup over the schedule table.
type Matcher struct {
	store Store
}

// New creates a Matcher.
func New(store Store) *Matcher {
	return &Matcher{store: store}
}

// Resolve returns the scheduled event for id. A missing entry is reported as
// model.NotFound with a nil error so self-service callers can skip silently.
func (m *Matcher) Resolve(ctx context.Context, id int64) (model.ScheduledEvent, model.Outcome, error) {
	ev, err := m.store.ScheduledEventByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.ScheduledEvent{}, model.NotFound, nil
	}
	if err != nil {
		return model.ScheduledEvent{}, model.NotFound, fmt.Errorf("schedule.resolve -> %w", err)
	}
	return ev, model.Resolved, nil
}
