// Package store keeps run bookkeeping in a local sqlite database.
// Every run drover starts, synchronous or via the serve API, gets a
// row here so `drover runs` and the dashboard can show history.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/droverhq/drover/internal/constants"
)

// Run statuses. These mirror the executor's state names so a row can
// be updated straight from a state change.
const (
	StatusRunning       = "running"
	StatusAwaitingInput = "awaiting_input"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusTimedOut      = "timed_out"
	StatusCancelled     = "cancelled"
)

// ErrNotFound is returned when a run id has no row.
var ErrNotFound = errors.New("run not found")

// Run is one bookkeeping row.
type Run struct {
	ID             int64
	Token          string
	UnitID         string
	Tool           string
	Command        string
	Prompt         string
	Status         string
	StartedAt      time.Time
	FinishedAt     *time.Time
	ExitCode       *int
	TranscriptPath string
}

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens the drover database under dataDir, creating the
// directory and schema as needed.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", constants.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token TEXT UNIQUE NOT NULL,
		unit_id TEXT,
		tool TEXT NOT NULL,
		command TEXT NOT NULL,
		prompt TEXT,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		exit_code INTEGER,
		transcript_path TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// CreateRun inserts a row and fills in the generated id, and the
// token and start time when the caller left them empty.
func (s *Store) CreateRun(run *Run) (int64, error) {
	if run.Token == "" {
		run.Token = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	result, err := s.db.Exec(
		`INSERT INTO runs (token, unit_id, tool, command, prompt, status, started_at, transcript_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Token, run.UnitID, run.Tool, run.Command, run.Prompt, run.Status, run.StartedAt, run.TranscriptPath,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}
	run.ID = id
	return id, nil
}

// GetRun returns the row for id, or ErrNotFound.
func (s *Store) GetRun(id int64) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, token, unit_id, tool, command, prompt, status, started_at, finished_at, exit_code, transcript_path
		 FROM runs WHERE id = ?`, id,
	)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("reading run %d: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent rows, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, token, unit_id, tool, command, prompt, status, started_at, finished_at, exit_code, transcript_path
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SetStatus updates a run's status.
func (s *Store) SetStatus(id int64, status string) error {
	result, err := s.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return checkAffected(result, id)
}

// MarkRunning flips an awaiting_input run back to running after input
// is delivered. Rows in any other status are left alone, so a run that
// finished in the meantime keeps its terminal status.
func (s *Store) MarkRunning(id int64) error {
	_, err := s.db.Exec(`UPDATE runs SET status = ? WHERE id = ? AND status = ?`,
		StatusRunning, id, StatusAwaitingInput)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return nil
}

// SetTranscriptPath records where a run's transcript is spooled.
func (s *Store) SetTranscriptPath(id int64, path string) error {
	result, err := s.db.Exec(`UPDATE runs SET transcript_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("updating transcript path: %w", err)
	}
	return checkAffected(result, id)
}

// FinishRun records a run's final status, finish time, and exit code.
// A nil exitCode leaves the column NULL (timeouts and spawn failures
// have no exit code).
func (s *Store) FinishRun(id int64, status string, exitCode *int) error {
	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, exit_code = ? WHERE id = ?`,
		status, time.Now().UTC(), exitCode, id,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return checkAffected(result, id)
}

func checkAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		unitID     sql.NullString
		prompt     sql.NullString
		finishedAt sql.NullTime
		exitCode   sql.NullInt64
		transcript sql.NullString
	)

	err := row.Scan(
		&run.ID, &run.Token, &unitID, &run.Tool, &run.Command, &prompt,
		&run.Status, &run.StartedAt, &finishedAt, &exitCode, &transcript,
	)
	if err != nil {
		return nil, err
	}

	if unitID.Valid {
		run.UnitID = unitID.String
	}
	if prompt.Valid {
		run.Prompt = prompt.String
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		run.ExitCode = &code
	}
	if transcript.Valid {
		run.TranscriptPath = transcript.String
	}

	return &run, nil
}
