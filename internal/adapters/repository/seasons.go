package repository

import (
	"context"

	"github.com/okian/acolyte/internal/domain/model"
)

// SeasonByID returns the season or model.ErrNotFound.
func (s *SQLStore) SeasonByID(ctx context.Context, id int64) (model.Season, error) {
	var se model.Season
	var start, end nullDate
	err := s.queryRow(ctx, "season_by_id",
		`SELECT id, name, start_date, end_date, active FROM seasons WHERE id = ?`, []any{id},
		&se.ID, &se.Name, &start, &end, &se.Active)
	se.Start, se.End = start.Time, end.Time
	return se, err
}

// ListSeasons returns seasons, newest first.
func (s *SQLStore) ListSeasons(ctx context.Context) ([]model.Season, error) {
	rows, err := s.query(ctx, "list_seasons",
		`SELECT id, name, start_date, end_date, active FROM seasons ORDER BY start_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Season
	for rows.Next() {
		var se model.Season
		var start, end nullDate
		if err := rows.Scan(&se.ID, &se.Name, &start, &end, &se.Active); err != nil {
			return nil, err
		}
		se.Start, se.End = start.Time, end.Time
		out = append(out, se)
	}
	return out, rows.Err()
}

// CreateSeason inserts a season and returns its id.
func (s *SQLStore) CreateSeason(ctx context.Context, se model.Season) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "create_season",
		`INSERT INTO seasons (name, start_date, end_date, active) VALUES (?, ?, ?, ?) RETURNING id`,
		[]any{se.Name, formatDate(se.Start), formatDate(se.End), se.Active}, &id)
	return id, err
}

// DeleteSeason removes a season. Seasons are otherwise immutable.
func (s *SQLStore) DeleteSeason(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, "delete_season", `DELETE FROM seasons WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
