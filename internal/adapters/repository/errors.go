package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/okian/acolyte/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
)

// mapError folds driver errors into the domain's sentinel kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.ConstraintName)
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.InvalidDatetimeFormat:
			return fmt.Errorf("%w: %s", model.ErrValidation, pgErr.Message)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", model.ErrConflict, liteErr)
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %v", model.ErrValidation, liteErr)
		}
	}
	return err
}
