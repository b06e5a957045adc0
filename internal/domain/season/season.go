// Package season decides whether a date falls inside the current scoring season.
package season

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/settings"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// Store is what the gate needs from persistence.
type Store interface {
	settings.Source
	SeasonByID(ctx context.Context, id int64) (model.Season, error)
}

// Verdict is the gate's answer for one date.
type Verdict struct {
	InSeason bool
	// Outcome is Defaulted when no season row exists for the configured id.
	Outcome model.Outcome
	Season  model.Season
}

// Gate is stateless; every call reads the current season id and row.
type Gate struct {
	store Store
	log   logger.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// New creates a Gate.
func New(store Store, opts ...Option) *Gate {
	g := &Gate{store: store}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Get().Named("season")
	}
	return g
}

// InSeason loads settings and checks date against the current season.
func (g *Gate) InSeason(ctx context.Context, date time.Time) (bool, error) {
	s, err := settings.Load(ctx, g.store)
	if err != nil {
		return false, err
	}
	v, err := g.Check(ctx, date, s.CurrentSeasonID)
	if err != nil {
		return false, err
	}
	return v.InSeason, nil
}

// Check tests date against the season with the given id. A missing season fails open.
func (g *Gate) Check(ctx context.Context, date time.Time, seasonID int64) (Verdict, error) {
	s, err := g.store.SeasonByID(ctx, seasonID)
	if errors.Is(err, model.ErrNotFound) {
		g.log.Debug(ctx, "current season missing, every date is in season", logger.Int64("season_id", seasonID))
		metrics.RecordDefaultedLookup("season")
		return Verdict{InSeason: true, Outcome: model.Defaulted}, nil
	}
	if err != nil {
		return Verdict{}, fmt.Errorf("season.check -> %w", err)
	}
	return Verdict{InSeason: s.Contains(date), Outcome: model.Resolved, Season: s}, nil
}
