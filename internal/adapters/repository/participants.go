package repository

import (
	"context"
	"fmt"

	"github.com/okian/acolyte/internal/domain/model"
)

// ParticipantByName returns the participant or model.ErrNotFound.
func (s *SQLStore) ParticipantByName(ctx context.Context, name string) (model.Participant, error) {
	var p model.Participant
	var role string
	err := s.queryRow(ctx, "participant_by_name",
		`SELECT name, role, active FROM participants WHERE name = ?`,
		[]any{name}, &p.Name, &role, &p.Active)
	if err != nil {
		return model.Participant{}, err
	}
	p.Role = model.Role(role)
	return p, nil
}

// ListParticipants returns every participant ordered by name.
func (s *SQLStore) ListParticipants(ctx context.Context) ([]model.Participant, error) {
	rows, err := s.query(ctx, "list_participants", `SELECT name, role, active FROM participants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		var role string
		if err := rows.Scan(&p.Name, &role, &p.Active); err != nil {
			return nil, err
		}
		p.Role = model.Role(role)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveParticipant creates the participant or updates its role and active flag.
func (s *SQLStore) SaveParticipant(ctx context.Context, p model.Participant) error {
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", model.ErrValidation, p.Role)
	}
	_, err := s.exec(ctx, "save_participant",
		`INSERT INTO participants (name, role, active) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET role = excluded.role, active = excluded.active`,
		p.Name, string(p.Role), p.Active)
	return err
}

// EnsureParticipant creates p only when no participant with that name exists.
// It reports whether a row was created.
func (s *SQLStore) EnsureParticipant(ctx context.Context, p model.Participant) (bool, error) {
	res, err := s.exec(ctx, "ensure_participant",
		`INSERT INTO participants (name, role, active) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		p.Name, string(p.Role), p.Active)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
