package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"treegift/internal/config"
)

// FileName is the journal database name inside the data directory.
const FileName = "journal.db"

// Store persists submission attempts.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the journal database under the configured
// data directory.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("journal: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, FileName))
}

// OpenPath opens the journal at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginAttempt opens a running attempt and returns its id.
func (s *Store) BeginAttempt(ctx context.Context, info AttemptInfo) (int64, error) {
	if strings.TrimSpace(info.RequestID) == "" {
		return 0, errors.New("begin attempt: request id is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (
            request_id, gift_request_id, correlation_id, user_email, request_type,
            tree_count, recipient_count, status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.RequestID,
		info.GiftRequestID,
		info.CorrelationID,
		info.UserEmail,
		info.RequestType,
		info.TreeCount,
		info.RecipientCount,
		StatusRunning,
		formatTime(s.now()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("attempt id: %w", err)
	}
	return id, nil
}

// RecordStep appends a stage outcome to an attempt.
func (s *Store) RecordStep(ctx context.Context, attemptID int64, step, status, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempt_steps (attempt_id, step, status, detail, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		attemptID, step, status, detail, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert step %s: %w", step, err)
	}
	return nil
}

// FinishAttempt closes an attempt. A nil cause with StatusFailed records an
// empty message.
func (s *Store) FinishAttempt(ctx context.Context, attemptID int64, status Status, kind string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status = ?, error_kind = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, kind, message, formatTime(s.now()), attemptID,
	)
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish attempt: attempt %d not found", attemptID)
	}
	return nil
}

// SetGiftRequestID records the persisted gift request id once the callback
// has assigned one.
func (s *Store) SetGiftRequestID(ctx context.Context, attemptID, giftRequestID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET gift_request_id = ? WHERE id = ?`, giftRequestID, attemptID,
	); err != nil {
		return fmt.Errorf("set gift request id: %w", err)
	}
	return nil
}

const attemptColumns = `id, request_id, gift_request_id, correlation_id, user_email, request_type,
    tree_count, recipient_count, status, error_kind, error_message, started_at, finished_at`

// ListAttempts returns the newest attempts first. A requestID filters to one
// request; limit <= 0 returns everything.
func (s *Store) ListAttempts(ctx context.Context, requestID string, limit int) ([]Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts`
	args := []any{}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		query += ` WHERE request_id = ?`
		args = append(args, requestID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// Attempt returns one attempt, or nil when it does not exist.
func (s *Store) Attempt(ctx context.Context, id int64) (*Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Steps returns the stages recorded for an attempt in order.
func (s *Store) Steps(ctx context.Context, attemptID int64) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempt_id, step, status, detail, recorded_at FROM attempt_steps WHERE attempt_id = ? ORDER BY id`,
		attemptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var rec StepRecord
		var recorded string
		if err := rows.Scan(&rec.ID, &rec.AttemptID, &rec.Step, &rec.Status, &rec.Detail, &recorded); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.RecordedAt = parseTime(recorded)
		steps = append(steps, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (Attempt, error) {
	var (
		a        Attempt
		status   string
		started  string
		finished sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.RequestID,
		&a.GiftRequestID,
		&a.CorrelationID,
		&a.UserEmail,
		&a.RequestType,
		&a.TreeCount,
		&a.RecipientCount,
		&status,
		&a.ErrorKind,
		&a.ErrorMessage,
		&started,
		&finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, err
		}
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	a.Status = Status(status)
	a.StartedAt = parseTime(started)
	if finished.Valid && finished.String != "" {
		t := parseTime(finished.String)
		a.FinishedAt = &t
	}
	return a, nil
}
