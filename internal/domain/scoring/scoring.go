// Package scoring computes the point value of one attendance claim.
//
// Two entry points exist. ComputeForSelf prices a self-service accrual for today,
// counts approved claims only and applies the daily cap. ComputeForSchedule prices a
// schedule-linked claim, counts claims of every status and is never capped.
// Both return zero outside the current season.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/acolyte/internal/domain/catalog"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/season"
	"github.com/okian/acolyte/internal/domain/settings"
	"github.com/okian/acolyte/internal/domain/weekly"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// RepeatFallbackPoints is awarded for a later occurrence of a type without its own bonus.
const RepeatFallbackPoints = 1

// Tier is the occurrence tier an award was priced at.
type Tier string

const (
	TierFirst  Tier = "first"
	TierRepeat Tier = "repeat"
)

// SeasonGate checks a date against a season.
type SeasonGate interface {
	Check(ctx context.Context, date time.Time, seasonID int64) (season.Verdict, error)
}

// Catalog resolves event types to base points.
type Catalog interface {
	Lookup(ctx context.Context, name string, scope catalog.Scope) (catalog.Entry, error)
}

// Counter counts weekly occurrences.
type Counter interface {
	CountInWeekExcluding(ctx context.Context, participant string, weekMonday time.Time, mode weekly.Mode, excludeID int64) (int, error)
}

// Award is a computed point value plus how it was reached.
type Award struct {
	Points      int           `json:"points"`
	Date        time.Time     `json:"-"`
	Tier        Tier          `json:"tier,omitempty"`
	WeeklyCount int           `json:"weekly_count"`
	InSeason    bool          `json:"in_season"`
	Capped      bool          `json:"capped"`
	EventType   model.Outcome `json:"event_type_outcome"`
	Season      model.Outcome `json:"season_outcome"`
}

// Engine composes the season gate, weekly counter and catalog with the stored settings.
type Engine struct {
	settings settings.Source
	gate     SeasonGate
	catalog  Catalog
	counter  Counter
	now      func() time.Time
	log      logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates a points engine.
func NewEngine(src settings.Source, gate SeasonGate, cat Catalog, counter Counter, opts ...Option) *Engine {
	e := &Engine{
		settings: src,
		gate:     gate,
		catalog:  cat,
		counter:  counter,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("scoring")
	}
	return e
}

// Today returns the engine's current date.
func (e *Engine) Today() time.Time {
	return model.Day(e.now())
}

// ComputeForSelf prices a self-service accrual of eventType for today.
func (e *Engine) ComputeForSelf(ctx context.Context, participant, eventType string) (Award, error) {
	today := e.Today()
	s, a, ok, err := e.gated(ctx, today)
	if err != nil || !ok {
		return a, err
	}

	n, err := e.counter.CountInWeekExcluding(ctx, participant, weekly.WeekStart(today), weekly.ApprovedOnly, 0)
	if err != nil {
		return e.fail(err)
	}
	a.WeeklyCount = n

	switch {
	case n >= 1 && s.SecondMassBonus:
		a.Tier = TierRepeat
		a.Points = s.SecondMassPoints
	default:
		entry, err := e.catalog.Lookup(ctx, eventType, catalog.ActiveOnly)
		if err != nil {
			return e.fail(err)
		}
		a.EventType = entry.Outcome
		a.Tier = TierFirst
		if n >= 1 {
			a.Tier = TierRepeat
		}
		a.Points = entry.Points
	}

	if s.MaxPointsPerDay > 0 && a.Points > s.MaxPointsPerDay {
		a.Points = s.MaxPointsPerDay
		a.Capped = true
		metrics.RecordAwardCapped()
	}

	metrics.RecordPointsAwarded("self", string(a.Tier), a.Points)
	return a, nil
}

// ComputeForSchedule prices a schedule-linked claim for date.
func (e *Engine) ComputeForSchedule(ctx context.Context, participant string, date time.Time, eventType string) (Award, error) {
	return e.RecomputeForSchedule(ctx, 0, participant, date, eventType)
}

// RecomputeForSchedule is ComputeForSchedule for a claim that may already be stored;
// claimID is left out of the weekly count.
func (e *Engine) RecomputeForSchedule(ctx context.Context, claimID int64, participant string, date time.Time, eventType string) (Award, error) {
	date = model.Day(date)
	_, a, ok, err := e.gated(ctx, date)
	if err != nil || !ok {
		return a, err
	}

	n, err := e.counter.CountInWeekExcluding(ctx, participant, weekly.WeekStart(date), weekly.AllStatuses, claimID)
	if err != nil {
		return e.fail(err)
	}
	a.WeeklyCount = n

	entry, err := e.catalog.Lookup(ctx, eventType, catalog.AnyState)
	if err != nil {
		return e.fail(err)
	}
	a.EventType = entry.Outcome

	switch {
	case n == 0:
		a.Tier = TierFirst
		a.Points = entry.Points
	case entry.BonusSecondMass:
		a.Tier = TierRepeat
		a.Points = entry.BonusPoints
	default:
		a.Tier = TierRepeat
		a.Points = RepeatFallbackPoints
	}

	metrics.RecordPointsAwarded("schedule", string(a.Tier), a.Points)
	return a, nil
}

// gated loads settings and applies the season gate. ok is false when the date is out of season.
func (e *Engine) gated(ctx context.Context, date time.Time) (settings.Settings, Award, bool, error) {
	s, err := settings.Load(ctx, e.settings)
	if err != nil {
		metrics.RecordScoringError()
		return s, Award{}, false, fmt.Errorf("scoring -> %w", err)
	}
	for _, key := range s.Defaulted {
		metrics.RecordDefaultedLookup("setting")
		e.log.Debug(ctx, "setting defaulted", logger.String("key", key))
	}

	v, err := e.gate.Check(ctx, date, s.CurrentSeasonID)
	if err != nil {
		metrics.RecordScoringError()
		return s, Award{}, false, fmt.Errorf("scoring -> %w", err)
	}
	a := Award{Date: date, InSeason: v.InSeason, Season: v.Outcome}
	if !v.InSeason {
		metrics.RecordOutOfSeason()
		e.log.Debug(ctx, "date outside season", logger.Date("date", date), logger.Int64("season_id", s.CurrentSeasonID))
		return s, a, false, nil
	}
	return s, a, true, nil
}

func (e *Engine) fail(err error) (Award, error) {
	metrics.RecordScoringError()
	return Award{}, fmt.Errorf("scoring -> %w", err)
}
