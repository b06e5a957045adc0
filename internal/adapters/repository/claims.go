package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/internal/domain/types"
)

const claimColumns = `id, participant, claim_date, points, event_type, notes, status, schedule_id, approved_by, approved_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(sc rowScanner) (model.Claim, error) {
	var (
		c            model.Claim
		date         nullDate
		status       string
		scheduleID   sql.NullInt64
		approvedBy   sql.NullString
		approvedDate nullDate
	)
	err := sc.Scan(&c.ID, &c.Participant, &date, &c.Points, &c.EventType, &c.Notes, &status,
		&scheduleID, &approvedBy, &approvedDate)
	if err != nil {
		return model.Claim{}, mapError(err)
	}
	c.Date = date.Time
	c.Status = model.Status(status)
	if scheduleID.Valid {
		id := scheduleID.Int64
		c.ScheduleID = &id
	}
	if approvedBy.Valid {
		by := approvedBy.String
		c.ApprovedBy = &by
	}
	if approvedDate.Valid {
		d := approvedDate.Time
		c.ApprovedDate = &d
	}
	return c, nil
}

func (s *SQLStore) claimWhere(ctx context.Context, name, where string, args ...any) (model.Claim, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+claimColumns+` FROM claims WHERE `+where), args...)
	c, err := scanClaim(row)
	s.observe(name, start, err)
	return c, err
}

// ClaimByID returns the claim or model.ErrNotFound.
func (s *SQLStore) ClaimByID(ctx context.Context, id int64) (model.Claim, error) {
	return s.claimWhere(ctx, "claim_by_id", `id = ?`, id)
}

// ClaimBySchedule returns participant's claim for a schedule entry.
func (s *SQLStore) ClaimBySchedule(ctx context.Context, participant string, scheduleID int64) (model.Claim, error) {
	return s.claimWhere(ctx, "claim_by_schedule", `participant = ? AND schedule_id = ?`, participant, scheduleID)
}

// ClaimByDate returns participant's unlinked claim for a date.
func (s *SQLStore) ClaimByDate(ctx context.Context, participant string, date time.Time) (model.Claim, error) {
	return s.claimWhere(ctx, "claim_by_date", `participant = ? AND claim_date = ? AND schedule_id IS NULL`,
		participant, formatDate(date))
}

// CountClaims counts claims matching q.
func (s *SQLStore) CountClaims(ctx context.Context, q model.ClaimCount) (int, error) {
	var b strings.Builder
	b.WriteString(`SELECT COUNT(*) FROM claims WHERE participant = ? AND claim_date BETWEEN ? AND ?`)
	args := []any{q.Participant, formatDate(q.From), formatDate(q.To)}
	if q.ExcludeID != 0 {
		b.WriteString(` AND id <> ?`)
		args = append(args, q.ExcludeID)
	}
	if len(q.Statuses) > 0 {
		b.WriteString(` AND status IN (` + placeholders(len(q.Statuses)) + `)`)
		for _, st := range q.Statuses {
			args = append(args, string(st))
		}
	}

	var n int
	err := s.queryRow(ctx, "count_week", b.String(), args, &n)
	return n, err
}

func claimArgs(c model.Claim) []any {
	var scheduleID, approvedBy, approvedDate any
	if c.ScheduleID != nil {
		scheduleID = *c.ScheduleID
	}
	if c.ApprovedBy != nil {
		approvedBy = *c.ApprovedBy
	}
	if c.ApprovedDate != nil {
		approvedDate = formatDate(*c.ApprovedDate)
	}
	return []any{c.Participant, formatDate(c.Date), c.Points, c.EventType, c.Notes, string(c.Status),
		scheduleID, approvedBy, approvedDate}
}

const claimUpsertSet = `claim_date = excluded.claim_date,
	points = excluded.points,
	event_type = excluded.event_type,
	notes = excluded.notes,
	status = excluded.status,
	approved_by = excluded.approved_by,
	approved_date = excluded.approved_date`

// UpsertScheduleClaim inserts c or updates the existing claim for (participant, schedule id).
// The partial unique index makes concurrent resubmissions converge on one row.
func (s *SQLStore) UpsertScheduleClaim(ctx context.Context, c model.Claim) (int64, error) {
	var id int64
	err := s.queryRow(ctx, "upsert_schedule_claim",
		`INSERT INTO claims (participant, claim_date, points, event_type, notes, status, schedule_id, approved_by, approved_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (participant, schedule_id) WHERE schedule_id IS NOT NULL DO UPDATE SET `+claimUpsertSet+`
		 RETURNING id`,
		claimArgs(c), &id)
	return id, err
}

// UpsertDateClaim inserts c or updates the unlinked claim for (participant, date).
func (s *SQLStore) UpsertDateClaim(ctx context.Context, c model.Claim) (int64, error) {
	c.ScheduleID = nil
	var id int64
	err := s.queryRow(ctx, "upsert_date_claim",
		`INSERT INTO claims (participant, claim_date, points, event_type, notes, status, schedule_id, approved_by, approved_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (participant, claim_date) WHERE schedule_id IS NULL DO UPDATE SET `+claimUpsertSet+`
		 RETURNING id`,
		claimArgs(c), &id)
	return id, err
}

// UpdateClaimStatus stores c's status and approval stamp.
func (s *SQLStore) UpdateClaimStatus(ctx context.Context, c model.Claim) error {
	var approvedBy, approvedDate any
	if c.ApprovedBy != nil {
		approvedBy = *c.ApprovedBy
	}
	if c.ApprovedDate != nil {
		approvedDate = formatDate(*c.ApprovedDate)
	}
	res, err := s.exec(ctx, "update_claim_status",
		`UPDATE claims SET status = ?, approved_by = ?, approved_date = ? WHERE id = ?`,
		string(c.Status), approvedBy, approvedDate, c.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UpdateClaimFields applies an administrative edit. Status is never written here.
func (s *SQLStore) UpdateClaimFields(ctx context.Context, id int64, edit model.ClaimEdit) error {
	var sets []string
	var args []any
	if edit.Points != nil {
		sets = append(sets, "points = ?")
		args = append(args, *edit.Points)
	}
	if edit.EventType != nil {
		sets = append(sets, "event_type = ?")
		args = append(args, *edit.EventType)
	}
	if edit.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *edit.Notes)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.exec(ctx, "update_claim_fields",
		`UPDATE claims SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteClaim removes one claim.
func (s *SQLStore) DeleteClaim(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, "delete_claim", `DELETE FROM claims WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// PurgeClaims removes claims dated before cutoff and returns how many went.
func (s *SQLStore) PurgeClaims(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.exec(ctx, "purge_claims", `DELETE FROM claims WHERE claim_date < ?`, formatDate(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func filterWhere(f model.ClaimFilter, alias string) (string, []any) {
	var conds []string
	var args []any
	if f.Participant != "" {
		conds = append(conds, alias+"participant = ?")
		args = append(args, f.Participant)
	}
	if f.Status != "" {
		conds = append(conds, alias+"status = ?")
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		conds = append(conds, alias+"claim_date >= ?")
		args = append(args, formatDate(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, alias+"claim_date <= ?")
		args = append(args, formatDate(f.To))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListClaims returns claims matching f, newest first.
func (s *SQLStore) ListClaims(ctx context.Context, f model.ClaimFilter) ([]model.Claim, error) {
	where, args := filterWhere(f, "")
	q := `SELECT ` + claimColumns + ` FROM claims` + where + ` ORDER BY claim_date DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := s.query(ctx, "list_claims", q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExportRows returns claims joined with their participant's role, newest first.
func (s *SQLStore) ExportRows(ctx context.Context, f model.ClaimFilter) ([]types.ExportRow, error) {
	where, args := filterWhere(f, "c.")
	rows, err := s.query(ctx, "export_claims",
		`SELECT c.participant, COALESCE(p.role, ''), c.claim_date, c.points, c.event_type, c.notes, c.status
		 FROM claims c LEFT JOIN participants p ON p.name = c.participant`+where+`
		 ORDER BY c.claim_date DESC, c.participant, c.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ExportRow
	for rows.Next() {
		var r types.ExportRow
		var d nullDate
		if err := rows.Scan(&r.Participant, &r.Role, &d, &r.Points, &r.EventType, &r.Notes, &r.Status); err != nil {
			return nil, err
		}
		r.Date = formatDate(d.Time)
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
