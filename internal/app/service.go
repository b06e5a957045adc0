// Package service composes the store and the domain packages into the
// operations served by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/acolyte/internal/adapters/export"
	"github.com/okian/acolyte/internal/adapters/repository"
	"github.com/okian/acolyte/internal/domain/approval"
	"github.com/okian/acolyte/internal/domain/catalog"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/schedule"
	"github.com/okian/acolyte/internal/domain/scoring"
	"github.com/okian/acolyte/internal/domain/season"
	"github.com/okian/acolyte/internal/domain/settings"
	"github.com/okian/acolyte/internal/domain/types"
	"github.com/okian/acolyte/internal/domain/weekly"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the points engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    *repository.SQLStore
	gate     *season.Gate
	catalog  *catalog.Catalog
	counter  *weekly.Counter
	matcher  *schedule.Matcher
	engine   *scoring.Engine
	workflow *approval.Workflow

	// Configuration
	driver         string
	dsn            string
	maxOpenConns   int
	bootstrapAdmin string
	location       *time.Location
	now            func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDatabase selects the store dialect and data source.
func WithDatabase(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.driver = driver
		}
		if dsn != "" {
			s.dsn = dsn
		}
	}
}

// WithMaxOpenConns bounds the store's connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithBootstrapAdmin names an administrator created on Start when missing.
// An empty name disables the bootstrap.
func WithBootstrapAdmin(name string) Option {
	return func(s *Service) {
		s.bootstrapAdmin = name
	}
}

// WithLocation sets the zone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		driver:         repository.DialectSQLite,
		dsn:            "file:acolyte.db?_foreign_keys=on&_busy_timeout=5000",
		bootstrapAdmin: "admin",
		location:       time.Local,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens and migrates the store, wires the engine and bootstraps the administrator.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting points service...", logger.String("driver", s.driver))

	store, err := repository.Open(ctx, s.driver, s.dsn,
		repository.WithMaxOpenConns(s.maxOpenConns),
		repository.WithLogger(logger.Get().Named("repository")),
	)
	if err != nil {
		return fmt.Errorf("service.start -> %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("service.start -> %w", err)
	}
	s.wire(store)

	if err := s.bootstrap(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("service.start -> %w", err)
	}

	s.started = true
	s.logger.Info(ctx, "points service started", logger.String("location", s.location.String()))
	return nil
}

func (s *Service) wire(store *repository.SQLStore) {
	clock := func() time.Time { return s.now().In(s.location) }

	s.store = store
	s.gate = season.New(store, season.WithLogger(logger.Get().Named("season")))
	s.catalog = catalog.New(store, catalog.WithLogger(logger.Get().Named("catalog")))
	s.counter = weekly.New(store)
	s.matcher = schedule.New(store)
	s.engine = scoring.NewEngine(store, s.gate, s.catalog, s.counter,
		scoring.WithClock(clock),
		scoring.WithLogger(logger.Get().Named("scoring")),
	)
	s.workflow = approval.New(store, s.engine, s.matcher, s.catalog,
		approval.WithLogger(logger.Get().Named("approval")),
	)
}

func (s *Service) bootstrap(ctx context.Context) error {
	if s.bootstrapAdmin == "" {
		return nil
	}
	created, err := s.store.EnsureParticipant(ctx, model.Participant{
		Name:   s.bootstrapAdmin,
		Role:   model.RoleAdministrator,
		Active: true,
	})
	if err != nil {
		return err
	}
	if created {
		s.logger.Info(ctx, "bootstrap administrator created", logger.String("participant", s.bootstrapAdmin))
	}
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping points service...")
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "points service stopped")
}

// ready guards every operation against use before Start or after Stop.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Today returns the current calendar date in the configured location.
func (s *Service) Today() time.Time {
	return model.Day(s.now().In(s.location))
}

// Health pings the store.
func (s *Service) Health(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.Ping(ctx)
}

// Participant resolves a caller identity.
func (s *Service) Participant(ctx context.Context, name string) (model.Participant, error) {
	if err := s.ready(); err != nil {
		return model.Participant{}, err
	}
	return s.store.ParticipantByName(ctx, name)
}

// ComputeForSelf prices today's self-service accrual for participant.
func (s *Service) ComputeForSelf(ctx context.Context, participant, eventType string) (scoring.Award, error) {
	if err := s.ready(); err != nil {
		return scoring.Award{}, err
	}
	return s.engine.ComputeForSelf(ctx, participant, eventType)
}

// ComputeForSchedule prices a schedule-linked claim without writing it.
func (s *Service) ComputeForSchedule(ctx context.Context, participant string, date time.Time, eventType string) (scoring.Award, error) {
	if err := s.ready(); err != nil {
		return scoring.Award{}, err
	}
	return s.engine.ComputeForSchedule(ctx, participant, date, eventType)
}

// SubmitSelf records actor's attendance at a schedule entry.
func (s *Service) SubmitSelf(ctx context.Context, actor model.Participant, scheduleID int64, notes string) (approval.SubmitResult, error) {
	if err := s.ready(); err != nil {
		return approval.SubmitResult{}, err
	}
	return s.workflow.SubmitSelf(ctx, actor, scheduleID, notes)
}

// SubmitManual records attendance on someone's behalf.
func (s *Service) SubmitManual(ctx context.Context, actor model.Participant, entry approval.ManualEntry) (approval.SubmitResult, error) {
	if err := s.ready(); err != nil {
		return approval.SubmitResult{}, err
	}
	return s.workflow.SubmitManual(ctx, actor, entry)
}

// Approve approves a pending claim.
func (s *Service) Approve(ctx context.Context, id int64, actor model.Participant) (model.Claim, error) {
	if err := s.ready(); err != nil {
		return model.Claim{}, err
	}
	return s.workflow.Approve(ctx, id, actor)
}

// Reject rejects a pending claim.
func (s *Service) Reject(ctx context.Context, id int64, actor model.Participant) (model.Claim, error) {
	if err := s.ready(); err != nil {
		return model.Claim{}, err
	}
	return s.workflow.Reject(ctx, id, actor)
}

// EditClaim corrects points, type or notes of a claim.
func (s *Service) EditClaim(ctx context.Context, id int64, actor model.Participant, edit model.ClaimEdit) (model.Claim, error) {
	if err := s.ready(); err != nil {
		return model.Claim{}, err
	}
	return s.workflow.Edit(ctx, id, actor, edit)
}

// DeleteClaim removes a claim.
func (s *Service) DeleteClaim(ctx context.Context, id int64, actor model.Participant) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.workflow.Delete(ctx, id, actor)
}

// Purge removes claims dated more than days before today.
func (s *Service) Purge(ctx context.Context, actor model.Participant, days int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", model.ErrValidation)
	}
	return s.workflow.Purge(ctx, actor, s.Today().AddDate(0, 0, -days))
}

// WeeklyCount counts participant's claims in the week of weekStart. Approved
// claims only, unless includePending widens it to every status.
func (s *Service) WeeklyCount(ctx context.Context, participant string, weekStart time.Time, includePending bool) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	mode := weekly.ApprovedOnly
	if includePending {
		mode = weekly.AllStatuses
	}
	return s.counter.CountInWeek(ctx, participant, weekStart, mode)
}

// InSeason reports whether date falls in the current season.
func (s *Service) InSeason(ctx context.Context, date time.Time) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.gate.InSeason(ctx, date)
}

// ListClaims returns claims matching f, newest first. Callers without the approve
// capability only see their own claims.
func (s *Service) ListClaims(ctx context.Context, actor model.Participant, f model.ClaimFilter) ([]model.Claim, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := approval.Authorize(actor, approval.ActionSubmit); err != nil {
		return nil, err
	}
	if !approval.Allowed(actor.Role, approval.ActionApprove) {
		f.Participant = actor.Name
	}
	return s.store.ListClaims(ctx, f)
}

// PendingClaims returns the moderation queue; actor must hold the approve capability.
func (s *Service) PendingClaims(ctx context.Context, actor model.Participant, limit int) ([]model.Claim, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := approval.Authorize(actor, approval.ActionApprove); err != nil {
		return nil, err
	}
	return s.store.ListClaims(ctx, model.ClaimFilter{Status: model.StatusPending, Limit: limit})
}

// Leaderboard ranks participants by approved points.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.Ranking(ctx, limit)
}

// ParticipantStats summarizes a participant's points, with month totals for the current month.
func (s *Service) ParticipantStats(ctx context.Context, name string) (types.Stats, error) {
	if err := s.ready(); err != nil {
		return types.Stats{}, err
	}
	return s.store.Stats(ctx, name, s.Today())
}

// Export writes claims matching f to w; actor must hold the approve capability.
func (s *Service) Export(ctx context.Context, actor model.Participant, w io.Writer, format export.Format, f model.ClaimFilter) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := approval.Authorize(actor, approval.ActionApprove); err != nil {
		return err
	}
	rows, err := s.store.ExportRows(ctx, f)
	if err != nil {
		return fmt.Errorf("service.export -> %w", err)
	}
	return export.Write(w, format, rows)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": started,
		"driver":  s.driver,
	}
	if !started {
		return stats
	}

	if ranked, err := s.store.Ranking(ctx, 0); err == nil {
		stats["rankedParticipants"] = len(ranked)
		metrics.UpdateParticipants(len(ranked))
	}
	if pending, err := s.store.PendingCount(ctx); err == nil {
		stats["pendingClaims"] = pending
		metrics.UpdatePendingClaims(pending)
	}
	if cfg, err := settings.Load(ctx, s.store); err == nil {
		stats["currentSeason"] = cfg.CurrentSeasonID
		stats["defaultedSettings"] = cfg.Defaulted
	}
	return stats
}
