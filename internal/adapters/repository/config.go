package repository

import (
	"context"
	"fmt"
	"sort"
)

// ConfigValues returns every configuration row.
func (s *SQLStore) ConfigValues(ctx context.Context) (map[string]string, error) {
	rows, err := s.query(ctx, "config_values", `SELECT key, value FROM config_values`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetConfigValues upserts the given keys in one transaction.
func (s *SQLStore) SetConfigValues(ctx context.Context, values map[string]string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository.set_config -> %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := s.rebind(`INSERT INTO config_values (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	for _, k := range keys {
		if _, err = tx.ExecContext(ctx, q, k, values[k]); err != nil {
			return fmt.Errorf("repository.set_config -> %s: %w", k, mapError(err))
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("repository.set_config -> %w", err)
	}
	return nil
}
