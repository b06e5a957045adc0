package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/acolyte/internal/domain/approval"
	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/settings"
	"github.com/okian/acolyte/pkg/logger"
)

// admin checks that the service is started and actor may perform action.
func (s *Service) admin(actor model.Participant, action approval.Action) error {
	if err := s.ready(); err != nil {
		return err
	}
	return approval.Authorize(actor, action)
}

// ListParticipants returns every participant.
func (s *Service) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx)
}

// SaveParticipant creates a participant or changes its role and active flag.
func (s *Service) SaveParticipant(ctx context.Context, actor model.Participant, p model.Participant) error {
	if err := s.admin(actor, approval.ActionAdminister); err != nil {
		return err
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", model.ErrValidation)
	}
	if p.Role == "" {
		p.Role = model.RoleParticipant
	}
	if err := s.store.SaveParticipant(ctx, p); err != nil {
		return fmt.Errorf("service.save_participant -> %w", err)
	}
	s.logger.Info(ctx, "participant saved",
		logger.String("participant", p.Name),
		logger.String("role", string(p.Role)),
		logger.Bool("active", p.Active),
		logger.String("actor", actor.Name))
	return nil
}

// ListEventTypes returns the catalog, optionally active types only.
func (s *Service) ListEventTypes(ctx context.Context, activeOnly bool) ([]model.EventType, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if activeOnly {
		return s.catalog.Active(ctx)
	}
	return s.store.ListEventTypes(ctx, false)
}

func validEventType(et model.EventType) error {
	if strings.TrimSpace(et.Name) == "" {
		return fmt.Errorf("%w: event type name is required", model.ErrValidation)
	}
	if et.Points < 0 || et.BonusPoints < 0 {
		return fmt.Errorf("%w: points must not be negative", model.ErrValidation)
	}
	return nil
}

// CreateEventType adds a type to the catalog and returns its id.
func (s *Service) CreateEventType(ctx context.Context, actor model.Participant, et model.EventType) (int64, error) {
	if err := s.admin(actor, approval.ActionAdminister); err != nil {
		return 0, err
	}
	et.Name = strings.TrimSpace(et.Name)
	if err := validEventType(et); err != nil {
		return 0, err
	}
	id, err := s.store.CreateEventType(ctx, et)
	if err != nil {
		return 0, fmt.Errorf("service.create_event_type -> %w", err)
	}
	s.logger.Info(ctx, "event type created", logger.Int64("id", id), logger.String("name", et.Name), logger.String("actor", actor.Name))
	return id, nil
}

// UpdateEventType overwrites a catalog entry. Deactivation is an update with Active false.
func (s *Service) UpdateEventType(ctx context.Context, actor model.Participant, et model.EventType) error {
	if err := s.admin(actor, approval.ActionAdminister); err != nil {
		return err
	}
	et.Name = strings.TrimSpace(et.Name)
	if err := validEventType(et); err != nil {
		return err
	}
	if err := s.store.UpdateEventType(ctx, et); err != nil {
		return fmt.Errorf("service.update_event_type -> %w", err)
	}
	s.logger.Info(ctx, "event type updated", logger.Int64("id", et.ID), logger.Bool("active", et.Active), logger.String("actor", actor.Name))
	return nil
}

// ListSeasons returns every season, newest first.
func (s *Service) ListSeasons(ctx context.Context) ([]model.Season, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListSeasons(ctx)
}

// CreateSeason adds a season and returns its id.
func (s *Service) CreateSeason(ctx context.Context, actor model.Participant, se model.Season) (int64, error) {
	if err := s.admin(actor, approval.ActionAdminister); err != nil {
		return 0, err
	}
	if strings.TrimSpace(se.Name) == "" {
		return 0, fmt.Errorf("%w: season name is required", model.ErrValidation)
	}
	se.Start, se.End = model.Day(se.Start), model.Day(se.End)
	if se.End.Before(se.Start) {
		return 0, fmt.Errorf("%w: season ends before it starts", model.ErrValidation)
	}
	id, err := s.store.CreateSeason(ctx, se)
	if err != nil {
		return 0, fmt.Errorf("service.create_season -> %w", err)
	}
	s.logger.Info(ctx, "season created", logger.Int64("id", id), logger.Date("start", se.Start), logger.Date("end", se.End))
	return id, nil
}

// DeleteSeason removes a season. The current season cannot be deleted.
func (s *Service) DeleteSeason(ctx context.Context, actor model.Participant, id int64) error {
	if err := s.admin(actor, approval.ActionAdminister); err != nil {
		return err
	}
	cfg, err := settings.Load(ctx, s.store)
	if err != nil {
		return fmt.Errorf("service.delete_season -> %w", err)
	}
	if cfg.CurrentSeasonID == id {
		return fmt.Errorf("%w: season %d is current", model.ErrConflict, id)
	}
	if err := s.store.DeleteSeason(ctx, id); err != nil {
		return fmt.Errorf("service.delete_season -> %w", err)
	}
	s.logger.Info(ctx, "season deleted", logger.Int64("id", id), logger.String("actor", actor.Name))
	return nil
}

// SetCurrentSeason points current_season_id at an existing season.
func (s *Service) SetCurrentSeason(ctx context.Context, actor model.Participant, id int64) error {
	if err := s.admin(actor, approval.ActionAdminister); err != nil {
		return err
	}
	if _, err := s.store.SeasonByID(ctx, id); err != nil {
		return fmt.Errorf("service.set_current_season -> season %d: %w", id, err)
	}
	_, err := s.updateSettings(ctx, actor, map[string]string{settings.KeyCurrentSeasonID: strconv.FormatInt(id, 10)})
	return err
}

// ListSchedule returns schedule entries dated within [from, to].
func (s *Service) ListSchedule(ctx context.Context, from, to time.Time) ([]model.ScheduledEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range ends before it starts", model.ErrValidation)
	}
	return s.store.ListSchedule(ctx, from, to)
}

// CreateScheduledEvent plans an event occurrence. The event type must be active.
func (s *Service) CreateScheduledEvent(ctx context.Context, actor model.Participant, ev model.ScheduledEvent) (int64, error) {
	if err := s.admin(actor, approval.ActionEditOthers); err != nil {
		return 0, err
	}
	if _, err := time.Parse("15:04", ev.Time); err != nil {
		return 0, fmt.Errorf("%w: time must be HH:MM", model.ErrValidation)
	}
	if err := s.catalog.Validate(ctx, ev.EventType); err != nil {
		return 0, err
	}
	ev.Date = model.Day(ev.Date)
	id, err := s.store.CreateScheduledEvent(ctx, ev)
	if err != nil {
		return 0, fmt.Errorf("service.create_schedule -> %w", err)
	}
	s.logger.Info(ctx, "event scheduled", logger.Int64("schedule_id", id), logger.Date("date", ev.Date),
		logger.String("time", ev.Time), logger.String("event_type", ev.EventType))
	return id, nil
}

// DeleteScheduledEvent removes a schedule entry. Claims linked to it are kept.
func (s *Service) DeleteScheduledEvent(ctx context.Context, actor model.Participant, id int64) error {
	if err := s.admin(actor, approval.ActionEditOthers); err != nil {
		return err
	}
	if err := s.store.DeleteScheduledEvent(ctx, id); err != nil {
		return fmt.Errorf("service.delete_schedule -> %w", err)
	}
	s.logger.Info(ctx, "schedule entry deleted", logger.Int64("schedule_id", id), logger.String("actor", actor.Name))
	return nil
}

// Settings returns the typed engine settings.
func (s *Service) Settings(ctx context.Context) (settings.Settings, error) {
	if err := s.ready(); err != nil {
		return settings.Settings{}, err
	}
	return settings.Load(ctx, s.store)
}

// UpdateSettings validates and stores a partial settings update and returns the result.
func (s *Service) UpdateSettings(ctx context.Context, actor model.Participant, update map[string]string) (settings.Settings, error) {
	if err := s.admin(actor, approval.ActionAdminister); err != nil {
		return settings.Settings{}, err
	}
	return s.updateSettings(ctx, actor, update)
}

func (s *Service) updateSettings(ctx context.Context, actor model.Participant, update map[string]string) (settings.Settings, error) {
	if len(update) == 0 {
		return settings.Settings{}, fmt.Errorf("%w: nothing to update", model.ErrValidation)
	}
	if err := settings.Validate(update); err != nil {
		return settings.Settings{}, err
	}
	if err := s.store.SetConfigValues(ctx, update); err != nil {
		return settings.Settings{}, fmt.Errorf("service.update_settings -> %w", err)
	}
	for k, v := range update {
		s.logger.Info(ctx, "setting changed", logger.String("key", k), logger.String("value", v), logger.String("actor", actor.Name))
	}
	return settings.Load(ctx, s.store)
}
