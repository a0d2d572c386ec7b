package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/insight-api/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// local development and tests; the server deployment uses Postgres.
type SQLiteStore struct {
	db        *sql.DB
	resultTTL time.Duration
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, resultTTL time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, resultTTL: resultTTL}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id                TEXT PRIMARY KEY,
	research_question TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'QUEUED',
	progress          INTEGER NOT NULL DEFAULT 0,
	current_step      TEXT,
	error_message     TEXT,
	full_result       TEXT,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	expires_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_created_at ON analysis_jobs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, question string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	expires := now.Add(s.resultTTL)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_jobs (id, research_question, status, progress, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, question, string(model.JobStatusQueued), 0, now, now, expires,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.Job{
		ID:        id,
		Question:  question,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: expires,
	}, nil
}

func (s *SQLiteStore) SetStatus(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, progress = ?, current_step = ?, updated_at = ? WHERE id = ?`,
		string(status), progress, step, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set status %s", jobID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) SaveResult(ctx context.Context, jobID string, report *model.FinalReport) error {
	resultJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, progress = 100, current_step = 'Finished', full_result = ?, updated_at = ? WHERE id = ?`,
		string(model.JobStatusComplete), string(resultJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save result %s", jobID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) SaveError(ctx context.Context, jobID string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET status = ?, error_message = ?, current_step = 'Error', updated_at = ? WHERE id = ?`,
		string(model.JobStatusError), message, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save error %s", jobID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, research_question, status, progress, current_step, error_message, full_result, created_at, updated_at, expires_at FROM analysis_jobs WHERE id = ?`,
		jobID,
	)
	j, err := scanJob(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, research_question, status, progress, current_step, error_message, full_result, created_at, updated_at, expires_at FROM analysis_jobs WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

// scanJob reads one job row shared by GetJob and ListJobs.
func scanJob(scan func(dest ...any) error) (*model.Job, error) {
	var j model.Job
	var step, errMsg, resultJSON sql.NullString

	if err := scan(&j.ID, &j.Question, &j.Status, &j.Progress, &step, &errMsg, &resultJSON, &j.CreatedAt, &j.UpdatedAt, &j.ExpiresAt); err != nil {
		return nil, err
	}
	j.CurrentStep = step.String
	j.ErrorMessage = errMsg.String
	if resultJSON.Valid && resultJSON.String != "" {
		j.Result = &model.FinalReport{}
		if err := json.Unmarshal([]byte(resultJSON.String), j.Result); err != nil {
			return nil, err
		}
	}
	return &j, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
