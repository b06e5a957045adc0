package repository

import (
	"context"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
)

// ScheduledEventByID returns the schedule entry or model.ErrNotFound.
func (s *SQLStore) ScheduledEventByID(ctx context.Context, id int64) (model.ScheduledEvent, error) {
	var ev model.ScheduledEvent
	var d nullDate
	err := s.queryRow(ctx, "schedule_by_id",
		`SELECT id, event_date, event_time, event_type, notes FROM schedule WHERE id = ?`, []any{id},
		&ev.ID, &d, &ev.Time, &ev.EventType, &ev.Notes)
	ev.Date = d.Time
	return ev, err
}

// ListSchedule returns entries dated within [from, to] in chronological order.
func (s *SQLStore) ListSchedule(ctx context.Context, from, to time.Time) ([]model.ScheduledEvent, error) {
	rows, err := s.query(ctx, "list_schedule",
		`SELECT id, event_date, event_time, event_type, notes FROM schedule
		 WHERE event_date BETWEEN ? AND ? ORDER BY event_date, event_time, id`,
		formatDate(from), formatDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduledEvent
	for rows.Next() {
		var ev model.ScheduledEvent
		var d nullDate
		if err := rows.Scan(&ev.ID, &d, &ev.Time, &ev.EventType, &ev.Notes); err != nil {
			return nil, err
		}
		ev.Date = d.Time
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CreateScheduledEvent inserts an entry and returns its id.
func (s *SQLStore) CreateScheduledEvent(ctx context.Context, ev model.ScheduledEvent) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "create_schedule",
		`INSERT INTO schedule (event_date, event_time, event_type, notes) VALUES (?, ?, ?, ?) RETURNING id`,
		[]any{formatDate(ev.Date), ev.Time, ev.EventType, ev.Notes}, &id)
	return id, err
}

// DeleteScheduledEvent removes an entry. Claims that reference it are kept.
func (s *SQLStore) DeleteScheduledEvent(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, "delete_schedule", `DELETE FROM schedule WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
