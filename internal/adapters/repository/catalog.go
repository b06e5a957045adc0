package repository

import (
	"context"

	"github.com/okian/acolyte/internal/domain/model"
)

const eventTypeColumns = `id, name, points, active, description, bonus_second_mass, bonus_points`

func scanEventType(sc interface{ Scan(...any) error }) (model.EventType, error) {
	var et model.EventType
	err := sc.Scan(&et.ID, &et.Name, &et.Points, &et.Active, &et.Description, &et.BonusSecondMass, &et.BonusPoints)
	return et, mapError(err)
}

// EventTypeByName returns the event type regardless of its active flag.
func (s *SQLStore) EventTypeByName(ctx context.Context, name string) (model.EventType, error) {
	var et model.EventType
	err := s.queryRow(ctx, "event_type_by_name",
		`SELECT `+eventTypeColumns+` FROM event_types WHERE name = ?`, []any{name},
		&et.ID, &et.Name, &et.Points, &et.Active, &et.Description, &et.BonusSecondMass, &et.BonusPoints)
	return et, err
}

// EventTypeByID returns the event type regardless of its active flag.
func (s *SQLStore) EventTypeByID(ctx context.Context, id int64) (model.EventType, error) {
	var et model.EventType
	err := s.queryRow(ctx, "event_type_by_id",
		`SELECT `+eventTypeColumns+` FROM event_types WHERE id = ?`, []any{id},
		&et.ID, &et.Name, &et.Points, &et.Active, &et.Description, &et.BonusSecondMass, &et.BonusPoints)
	return et, err
}

// ListEventTypes returns event types ordered by name.
func (s *SQLStore) ListEventTypes(ctx context.Context, activeOnly bool) ([]model.EventType, error) {
	q := `SELECT ` + eventTypeColumns + ` FROM event_types`
	var args []any
	if activeOnly {
		q += ` WHERE active = ?`
		args = append(args, true)
	}
	rows, err := s.query(ctx, "list_event_types", q+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EventType
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, rows.Err()
}

// CreateEventType inserts et and returns its id. A duplicate name is model.ErrConflict.
func (s *SQLStore) CreateEventType(ctx context.Context, et model.EventType) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "create_event_type",
		`INSERT INTO event_types (name, points, active, description, bonus_second_mass, bonus_points)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		[]any{et.Name, et.Points, et.Active, et.Description, et.BonusSecondMass, et.BonusPoints}, &id)
	return id, err
}

// UpdateEventType overwrites every column of the type with et.ID.
func (s *SQLStore) UpdateEventType(ctx context.Context, et model.EventType) error {
	res, err := s.exec(ctx, "update_event_type",
		`UPDATE event_types SET name = ?, points = ?, active = ?, description = ?, bonus_second_mass = ?, bonus_points = ?
		 WHERE id = ?`,
		et.Name, et.Points, et.Active, et.Description, et.BonusSecondMass, et.BonusPoints, et.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}
