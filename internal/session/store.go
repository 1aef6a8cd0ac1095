// Package session persists uploaded dataset pairs in SQLite so repeated
// analysis calls can reference them by token instead of re-uploading.
package session

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tellurium-labs/assay.report/internal/tabular"
	"github.com/tellurium-labs/assay.report/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a token does not resolve to a live session.
// Expired sessions report the same error as unknown tokens.
var ErrNotFound = errors.New("session not found")

// Upload is one dataset pair as received from the client.
type Upload struct {
	OriginalName  string
	CandidateName string
	OriginalCSV   []byte
	CandidateCSV  []byte
}

// Session is a stored upload plus its lifecycle metadata.
type Session struct {
	Token     string
	Upload    Upload
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store keeps sessions in a SQLite database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
	ttl   time.Duration
}

// NewStore opens (creating if needed) the session database at path and runs
// pending migrations. The clock is injectable so expiry is testable.
func NewStore(path string, ttl time.Duration, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{db: db, clock: clock, ttl: ttl}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}

	// Note: we don't close m because it would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// Put stores an upload and returns its freshly minted token.
func (s *Store) Put(up Upload) (string, error) {
	token := uuid.NewString()
	now := s.clock.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO sessions (token, original_name, candidate_name, original_csv, candidate_csv, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token, up.OriginalName, up.CandidateName, up.OriginalCSV, up.CandidateCSV,
		now, now.Add(s.ttl),
	)
	if err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// Get returns a live session by token. Expired or unknown tokens yield
// ErrNotFound.
func (s *Store) Get(token string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT token, original_name, candidate_name, original_csv, candidate_csv, created_at, expires_at
		FROM sessions WHERE token = ?`, token)

	var sess Session
	err := row.Scan(&sess.Token, &sess.Upload.OriginalName, &sess.Upload.CandidateName,
		&sess.Upload.OriginalCSV, &sess.Upload.CandidateCSV, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !s.clock.Now().UTC().Before(sess.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (s *Store) Delete(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Purge removes all expired sessions and returns how many were dropped.
func (s *Store) Purge() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at <= ?`, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	return n, nil
}

// Count returns the number of live sessions.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE expires_at > ?`,
		s.clock.Now().UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Datasets parses the session's stored CSVs into labelled datasets.
func (sess *Session) Datasets() (orig, cand *tabular.Dataset, err error) {
	orig, err = tabular.FromCSVBytes("original", sess.Upload.OriginalCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse original csv: %w", err)
	}
	cand, err = tabular.FromCSVBytes("candidate", sess.Upload.CandidateCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse candidate csv: %w", err)
	}
	return orig, cand, nil
}
