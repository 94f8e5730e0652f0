// Package postgres provides a PostgreSQL implementation of driven.PatientStore
// built on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/postgres/migrations"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/rowcodec"
	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
	"github.com/nuvie/nuvie-ingestor/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.PatientStore = (*Store)(nil)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// migrationLockID serialises concurrent migrators.
const migrationLockID = 7_204_118

// columnTypes lists columns whose text parameters need an explicit cast.
var columnTypes = map[string]string{
	"id":                  "uuid",
	"birthdate":           "date",
	"deathdate":           "date",
	"marital":             "marital",
	"race":                "race",
	"ethnicity":           "ethnicity",
	"gender":              "gender",
	"lat":                 "numeric",
	"lon":                 "numeric",
	"healthcare_expenses": "numeric",
	"healthcare_coverage": "numeric",
}

var (
	insertSQL    = buildInsert()
	selectList   = buildSelectList()
	findBySSNSQL = "SELECT " + selectList + " FROM patients WHERE ssn = $1"
	listSQL      = "SELECT " + selectList + " FROM patients ORDER BY ssn OFFSET $1 LIMIT $2"
	listAllSQL   = "SELECT " + selectList + " FROM patients ORDER BY ssn OFFSET $1"
	countSQL     = "SELECT COUNT(*) FROM patients"
)

// buildInsert sends every value as text and casts it server-side.
func buildInsert() string {
	values := make([]string, len(rowcodec.Columns))
	for i, col := range rowcodec.Columns {
		values[i] = "$" + strconv.Itoa(i+1) + "::text"
		if typ, ok := columnTypes[col]; ok {
			values[i] += "::" + typ
		}
	}
	return "INSERT INTO patients (" + strings.Join(rowcodec.Columns, ", ") +
		") VALUES (" + strings.Join(values, ", ") + ")"
}

// buildSelectList reads every column back as text.
func buildSelectList() string {
	cols := make([]string, len(rowcodec.Columns))
	for i, col := range rowcodec.Columns {
		cols[i] = col + "::text"
	}
	return strings.Join(cols, ", ")
}

// Store is a PostgreSQL-backed patient store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to uri, sizes the pool to maxConns (when positive) and
// applies pending migrations.
func NewStore(ctx context.Context, uri string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres uri: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Session acquires one pooled connection for the caller.
func (s *Store) Session(ctx context.Context) (driven.PatientSession, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &session{conn: conn}, nil
}

// Count returns the number of stored patients.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting patients: %w", err)
	}
	return int(n), nil
}

// List returns patients ordered by SSN. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, offset, limit int) ([]domain.Patient, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.pool.Query(ctx, listSQL, max(0, offset), limit)
	} else {
		rows, err = s.pool.Query(ctx, listAllSQL, max(0, offset))
	}
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var patients []domain.Patient
	for rows.Next() {
		var rec rowcodec.Record
		if err := rows.Scan(rec.Targets()...); err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		p, err := rec.Patient()
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// migrate applies pending *.up.sql files in version order, each in its own
// transaction under an advisory lock.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	upFiles, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		applied, err := s.apply(ctx, version, string(content))
		if err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if applied {
			logger.Info("Applied migration", "name", name)
		}
	}
	return nil
}

func (s *Store) apply(ctx context.Context, version int, content string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, content); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// session implements driven.PatientSession on one pooled connection.
type session struct {
	conn *pgxpool.Conn
}

var _ driven.PatientSession = (*session)(nil)

// FindBySSN looks a patient up by SSN.
func (s *session) FindBySSN(ctx context.Context, ssn string) (*domain.Patient, error) {
	var rec rowcodec.Record
	if err := s.conn.QueryRow(ctx, findBySSNSQL, ssn).Scan(rec.Targets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding patient: %w", err)
	}
	p, err := rec.Patient()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert stores a new patient.
func (s *session) Insert(ctx context.Context, p *domain.Patient) error {
	p.EnsureID()
	rec := rowcodec.FromPatient(p)
	if _, err := s.conn.Exec(ctx, insertSQL, rec.Args()...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("patient ssn %s: %w", p.SSN, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("inserting patient: %w", err)
	}
	return nil
}

// Close releases the connection back to the pool.
func (s *session) Close() error {
	s.conn.Release()
	return nil
}
