package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sqlitedrv "modernc.org/sqlite" // SQLite driver
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/rowcodec"
	"github.com/nuvie/nuvie-ingestor/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.PatientStore = (*Store)(nil)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "patients.db"

var (
	columnList   = strings.Join(rowcodec.Columns, ", ")
	insertSQL    = "INSERT INTO patients (" + columnList + ") VALUES (" + placeholders(len(rowcodec.Columns)) + ")"
	findBySSNSQL = "SELECT " + columnList + " FROM patients WHERE ssn = ?"
	listSQL      = "SELECT " + columnList + " FROM patients ORDER BY ssn LIMIT ? OFFSET ?"
	countSQL     = "SELECT COUNT(*) FROM patients"
)

// Store is a SQLite-backed patient store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.nuvie/data/patients.db.
// A leading "~/" is expanded to the home directory.
func NewStore(dataDir string) (*Store, error) {
	dataDir, err := expandHome(dataDir)
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(context.Background(), migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func expandHome(dir string) (string, error) {
	if dir != "" && dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if dir == "" {
		return filepath.Join(home, ".nuvie", "data"), nil
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Session pins one pooled connection for the caller.
func (s *Store) Session(ctx context.Context) (driven.PatientSession, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &session{conn: conn}, nil
}

// Count returns the number of stored patients.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting patients: %w", err)
	}
	return n, nil
}

// List returns patients ordered by SSN. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, offset, limit int) ([]domain.Patient, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, listSQL, limit, max(0, offset))
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

// migrate runs all pending migrations.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	upFiles, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_patients.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.apply(ctx, version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// apply runs one migration and records its version atomically.
func (s *Store) apply(ctx context.Context, version int, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// session implements driven.PatientSession on one connection.
type session struct {
	conn *sql.Conn
}

var _ driven.PatientSession = (*session)(nil)

// FindBySSN looks a patient up by SSN.
func (s *session) FindBySSN(ctx context.Context, ssn string) (*domain.Patient, error) {
	var rec rowcodec.Record
	err := s.conn.QueryRowContext(ctx, findBySSNSQL, ssn).Scan(rec.Targets()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	if _, err := s.conn.ExecContext(ctx, insertSQL, rec.Args()...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("patient ssn %s: %w", p.SSN, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("inserting patient: %w", err)
	}
	return nil
}

// Close returns the connection to the pool.
func (s *session) Close() error {
	return s.conn.Close()
}

func isUniqueViolation(err error) bool {
	var serr *sqlitedrv.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
