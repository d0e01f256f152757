// Package history persists analysis executions in SQLite and exports them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spigell/ats-checker/internal/ats"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned by Get for unknown ids.
	ErrNotFound = errors.New("execution not found")
	// ErrLimitReached is returned by Reserve when the email has no executions left.
	ErrLimitReached = errors.New("execution limit reached")
)

// ReservationTTL is how long an unfinished reservation holds a slot.
// It outlives any analysis, so only crashed runs expire.
const ReservationTTL = 15 * time.Minute

const schema = `
CREATE TABLE IF NOT EXISTS executions (
	id          TEXT PRIMARY KEY,
	email       TEXT NOT NULL DEFAULT '',
	occupation  TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL DEFAULT '',
	ext         TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	resume_lang TEXT NOT NULL DEFAULT '',
	jd_lang     TEXT NOT NULL DEFAULT '',
	vendor      TEXT NOT NULL DEFAULT '',
	model       TEXT NOT NULL DEFAULT '',
	jd_score    INTEGER,
	ats_score   INTEGER NOT NULL DEFAULT 0,
	ats_details TEXT NOT NULL DEFAULT '{}',
	feedback    TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS executions_email_created ON executions (email, created_at);
CREATE TABLE IF NOT EXISTS reservations (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS reservations_email ON reservations (email);
`

const columns = `id, email, occupation, filename, ext, size, resume_lang, jd_lang, vendor, model, jd_score, ats_score, ats_details, feedback, created_at`

// Execution is one persisted analysis.
type Execution struct {
	ID         string      `json:"id"`
	Email      string      `json:"email"`
	Occupation string      `json:"occupation,omitempty"`
	Filename   string      `json:"filename"`
	Ext        string      `json:"ext"`
	Size       int64       `json:"size"`
	ResumeLang string      `json:"resume_lang"`
	JDLang     string      `json:"jd_lang"`
	Vendor     string      `json:"vendor"`
	Model      string      `json:"model"`
	JDScore    *int        `json:"jd_score"`
	ATSScore   int         `json:"ats_score"`
	ATSDetails *ats.Result `json:"ats_details,omitempty"`
	Feedback   string      `json:"feedback"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ListFilter narrows List. An empty Email lists everyone; Limit <= 0 means no limit.
type ListFilter struct {
	Email string
	Limit int
}

// Store is a SQLite-backed execution log.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// A single connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 10000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reserve claims one execution slot for email under id, or returns ErrLimitReached
// when executions and live reservations already reach limit. The count and the
// claim happen in one transaction, so concurrent callers cannot overshoot.
// Save turns the reservation into an execution; Release gives it back.
func (s *Store) Reserve(ctx context.Context, id, email string, limit int) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("history: reservation id is required")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE expires_at <= ?`, now.UnixNano()); err != nil {
		return fmt.Errorf("history: expire reservations: %w", err)
	}

	used, err := countByEmail(ctx, tx, email)
	if err != nil {
		return err
	}
	if used >= limit {
		return fmt.Errorf("%w: %d of %d used", ErrLimitReached, used, limit)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO reservations (id, email, expires_at) VALUES (?, ?, ?)`,
		id, email, now.Add(ReservationTTL).UnixNano()); err != nil {
		return fmt.Errorf("history: reserve: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Release drops the reservation id. Unknown ids are not an error.
func (s *Store) Release(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("history: release: %w", err)
	}
	return nil
}

// Save inserts e and drops the reservation with the same id, if any. CreatedAt defaults to now.
func (s *Store) Save(ctx context.Context, e *Execution) error {
	if e == nil || strings.TrimSpace(e.ID) == "" {
		return errors.New("history: execution id is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	details := []byte("{}")
	if e.ATSDetails != nil {
		var err error
		if details, err = json.Marshal(e.ATSDetails); err != nil {
			return fmt.Errorf("history: marshal ats details: %w", err)
		}
	}

	var jdScore sql.NullInt64
	if e.JDScore != nil {
		jdScore = sql.NullInt64{Int64: int64(*e.JDScore), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO executions (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, strings.ToLower(e.Email), e.Occupation, e.Filename, e.Ext, e.Size, e.ResumeLang, e.JDLang,
		e.Vendor, e.Model, jdScore, e.ATSScore, string(details), e.Feedback,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, e.ID); err != nil {
		return fmt.Errorf("history: release: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Get loads one execution by id.
func (s *Store) Get(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM executions WHERE id = ?`, id)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: get %s: %w", id, err)
	}
	return e, nil
}

// List returns executions newest first.
func (s *Store) List(ctx context.Context, f ListFilter) ([]Execution, error) {
	query := `SELECT ` + columns + ` FROM executions`
	var args []any
	if email := strings.TrimSpace(f.Email); email != "" {
		query += ` WHERE email = ?`
		args = append(args, strings.ToLower(email))
	}
	query += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("history: list: %w", err)
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// countByEmail counts executions plus live reservations of an already lowercased email.
func countByEmail(ctx context.Context, q querier, email string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM executions WHERE email = ?) + (SELECT COUNT(*) FROM reservations WHERE email = ?)`,
		email, email,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("history: count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (*Execution, error) {
	var (
		e         Execution
		jdScore   sql.NullInt64
		details   string
		createdAt string
	)
	if err := r.Scan(&e.ID, &e.Email, &e.Occupation, &e.Filename, &e.Ext, &e.Size, &e.ResumeLang, &e.JDLang,
		&e.Vendor, &e.Model, &jdScore, &e.ATSScore, &details, &e.Feedback, &createdAt); err != nil {
		return nil, err
	}

	if jdScore.Valid {
		v := int(jdScore.Int64)
		e.JDScore = &v
	}

	if details != "" && details != "{}" {
		var result ats.Result
		if err := json.Unmarshal([]byte(details), &result); err != nil {
			return nil, fmt.Errorf("decode ats details: %w", err)
		}
		e.ATSDetails = &result
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	e.CreatedAt = t

	return &e, nil
}
