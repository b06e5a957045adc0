// Package catalog resolves event-type names to point values.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// DefaultPoints is awarded for an unknown or filtered-out event type.
const DefaultPoints = 1

// Scope selects which event types a lookup may match.
type Scope int

const (
	// ActiveOnly ignores inactive types, as self-service submission does.
	ActiveOnly Scope = iota
	// AnyState matches inactive types too, for historical and schedule-linked records.
	AnyState
)

// Store is what the catalog needs from persistence.
type Store interface {
	EventTypeByName(ctx context.Context, name string) (model.EventType, error)
	EventTypeByID(ctx context.Context, id int64) (model.EventType, error)
	ListEventTypes(ctx context.Context, activeOnly bool) ([]model.EventType, error)
}

// Entry is a lookup result. EventType is zero apart from Name and Points when defaulted.
type Entry struct {
	model.EventType
	Outcome model.Outcome
}

// Catalog is a read-through view of the event-type table.
type Catalog struct {
	store Store
	log   logger.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a Catalog.
func New(store Store, opts ...Option) *Catalog {
	c := &Catalog{store: store}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("catalog")
	}
	return c
}

// Lookup resolves name within scope. Unknown names never fail; they default to DefaultPoints.
func (c *Catalog) Lookup(ctx context.Context, name string, scope Scope) (Entry, error) {
	et, err := c.store.EventTypeByName(ctx, name)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.fallback(ctx, name, "unknown"), nil
	case err != nil:
		return Entry{}, fmt.Errorf("catalog.lookup -> %w", err)
	case scope == ActiveOnly && !et.Active:
		return c.fallback(ctx, name, "inactive"), nil
	}
	return Entry{EventType: et, Outcome: model.Resolved}, nil
}

// ByID resolves a type regardless of its active flag, for administrative edits.
func (c *Catalog) ByID(ctx context.Context, id int64) (model.EventType, error) {
	et, err := c.store.EventTypeByID(ctx, id)
	if err != nil {
		return model.EventType{}, fmt.Errorf("catalog.by_id -> %w", err)
	}
	return et, nil
}

// Active lists the types valid for self-service submission.
func (c *Catalog) Active(ctx context.Context) ([]model.EventType, error) {
	ets, err := c.store.ListEventTypes(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("catalog.active -> %w", err)
	}
	return ets, nil
}

// Validate fails with ErrValidation unless name is an active type.
func (c *Catalog) Validate(ctx context.Context, name string) error {
	e, err := c.Lookup(ctx, name, ActiveOnly)
	if err != nil {
		return err
	}
	if e.Outcome != model.Resolved {
		return fmt.Errorf("%w: unknown or inactive event type %q", model.ErrValidation, name)
	}
	return nil
}

func (c *Catalog) fallback(ctx context.Context, name, reason string) Entry {
	c.log.Debug(ctx, "event type defaulted", logger.String("event_type", name), logger.String("reason", reason))
	metrics.RecordDefaultedLookup("event_type")
	return Entry{
		EventType: model.EventType{Name: name, Points: DefaultPoints},
		Outcome:   model.Defaulted,
	}
}
