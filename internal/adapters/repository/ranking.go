package repository

import (
	"context"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/types"
)

// Ranking returns active participants with the participant role ordered by
// approved points. Tied totals share a rank. limit <= 0 returns everyone.
func (s *SQLStore) Ranking(ctx context.Context, limit int) ([]types.Entry, error) {
	q := `SELECT p.name, COALESCE(SUM(c.points), 0) AS total
		FROM participants p
		LEFT JOIN claims c ON c.participant = p.name AND c.status = ?
		WHERE p.role = ? AND p.active = ?
		GROUP BY p.name
		ORDER BY total DESC, p.name ASC`
	args := []any{string(model.StatusApproved), string(model.RoleParticipant), true}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, "ranking", q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Entry
	for rows.Next() {
		var e types.Entry
		if err := rows.Scan(&e.Participant, &e.Points); err != nil {
			return nil, err
		}
		e.Rank = len(out) + 1
		if n := len(out); n > 0 && out[n-1].Points == e.Points {
			e.Rank = out[n-1].Rank
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats summarizes participant's approved points overall and within month's calendar month.
// Rank is zero for participants who are not ranked (moderators, administrators, inactive).
func (s *SQLStore) Stats(ctx context.Context, participant string, month time.Time) (types.Stats, error) {
	if _, err := s.ParticipantByName(ctx, participant); err != nil {
		return types.Stats{}, err
	}
	st := types.Stats{Participant: participant}

	approved := string(model.StatusApproved)
	if err := s.queryRow(ctx, "stats_total",
		`SELECT COALESCE(SUM(points), 0) FROM claims WHERE participant = ? AND status = ?`,
		[]any{participant, approved}, &st.TotalPoints); err != nil {
		return types.Stats{}, err
	}

	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	if err := s.queryRow(ctx, "stats_month",
		`SELECT COALESCE(SUM(points), 0), COUNT(*) FROM claims
		 WHERE participant = ? AND status = ? AND claim_date BETWEEN ? AND ?`,
		[]any{participant, approved, formatDate(first), formatDate(last)}, &st.MonthPoints, &st.MonthClaims); err != nil {
		return types.Stats{}, err
	}

	ranking, err := s.Ranking(ctx, 0)
	if err != nil {
		return types.Stats{}, err
	}
	st.RankedTotal = len(ranking)
	for _, e := range ranking {
		if e.Participant == participant {
			st.Rank = e.Rank
			break
		}
	}
	return st, nil
}

// PendingCount returns how many claims await moderation.
func (s *SQLStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.queryRow(ctx, "pending_count", `SELECT COUNT(*) FROM claims WHERE status = ?`,
		[]any{string(model.StatusPending)}, &n)
	return n, err
}
