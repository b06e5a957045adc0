// Package repository persists participants, catalog data, settings and claims
// in SQLite or PostgreSQL through database/sql.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	"github.com/pressly/goose/v3"

	"github.com/okian/acolyte/internal/domain/model"
	"github.com/okian/acolyte/pkg/logger"
	"github.com/okian/acolyte/pkg/metrics"
)

// Dialect names accepted by Open.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// SQLStore implements every persistence port of the domain packages.
type SQLStore struct {
	db           *sql.DB
	dialect      string
	log          logger.Logger
	maxOpenConns int
}

// Open connects to the database for dialect and verifies the connection.
func Open(ctx context.Context, dialect, dsn string, opts ...Option) (*SQLStore, error) {
	driver := ""
	switch dialect {
	case DialectSQLite:
		driver = "sqlite3"
	case DialectPostgres:
		driver = "pgx"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository.open -> %w", err)
	}
	s := &SQLStore{db: db, dialect: dialect}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("repository")
	}
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if dialect == DialectSQLite {
		// In-memory databases live per connection.
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			db.SetMaxOpenConns(1)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository.open -> ping: %w", err)
	}
	return s, nil
}

// Migrate applies the embedded schema migrations for the store's dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	dir := "migrations/sqlite"
	if s.dialect == DialectPostgres {
		dir = "migrations/postgres"
	}
	sub, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("repository.migrate -> %w", err)
	}
	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("repository.migrate -> %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("repository.migrate -> %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, s.db)
	if err == nil {
		s.log.Info(ctx, "schema migrated", logger.String("dialect", s.dialect), logger.Int64("version", version))
	}
	return nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Dialect returns the dialect the store was opened with.
func (s *SQLStore) Dialect() string {
	return s.dialect
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, name, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	err = mapError(err)
	s.observe(name, start, err)
	return res, err
}

func (s *SQLStore) query(ctx context.Context, name, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	err = mapError(err)
	s.observe(name, start, err)
	return rows, err
}

// queryRow runs query and scans one row into dest.
func (s *SQLStore) queryRow(ctx context.Context, name, query string, args []any, dest ...any) error {
	start := time.Now()
	err := mapError(s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(dest...))
	s.observe(name, start, err)
	return err
}

func (s *SQLStore) observe(name string, start time.Time, err error) {
	if errors.Is(err, model.ErrNotFound) {
		err = nil
	}
	metrics.RecordStoreQuery(name, float64(time.Since(start).Microseconds())/1000, err)
}

// expectOne turns an update that touched no rows into ErrNotFound.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func formatDate(t time.Time) string {
	return t.Format(model.DateLayout)
}

// nullDate scans DATE columns from both drivers: time.Time from pgx, text from SQLite.
type nullDate struct {
	Time  time.Time
	Valid bool
}

func (d *nullDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = model.Day(v), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("unsupported date value %T", src)
}

func (d *nullDate) parse(s string) error {
	if len(s) > len(model.DateLayout) {
		s = s[:len(model.DateLayout)]
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return err
	}
	d.Time, d.Valid = t, true
	return nil
}
