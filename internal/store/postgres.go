package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/insight-api/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. Declared as an
// interface so tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool      Pool
	resultTTL time.Duration
	closeFn   func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"insert_job":  `INSERT INTO analysis_jobs (id, research_question, status, progress, created_at, updated_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"set_status":  `UPDATE analysis_jobs SET status = $1, progress = $2, current_step = $3, updated_at = $4 WHERE id = $5`,
	"save_result": `UPDATE analysis_jobs SET status = $1, progress = 100, current_step = 'Finished', full_result = $2, updated_at = $3 WHERE id = $4`,
	"save_error":  `UPDATE analysis_jobs SET status = $1, error_message = $2, current_step = 'Error', updated_at = $3 WHERE id = $4`,
	"get_job":     `SELECT id, research_question, status, progress, current_step, error_message, full_result, created_at, updated_at, expires_at FROM analysis_jobs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, resultTTL time.Duration) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, resultTTL: resultTTL, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	research_question VARCHAR(500) NOT NULL,
	status            TEXT NOT NULL DEFAULT 'QUEUED',
	progress          INTEGER NOT NULL DEFAULT 0,
	current_step      VARCHAR(100),
	error_message     TEXT,
	full_result       JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_created_at ON analysis_jobs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_analysis_jobs_expires_at ON analysis_jobs(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, question string) (*model.Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	expires := now.Add(s.resultTTL)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (id, research_question, status, progress, created_at, updated_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, question, string(model.JobStatusQueued), 0, now, now, expires,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
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

func (s *PostgresStore) SetStatus(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, progress = $2, current_step = $3, updated_at = $4 WHERE id = $5`,
		string(status), progress, step, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set status %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, jobID string, report *model.FinalReport) error {
	resultJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, progress = 100, current_step = 'Finished', full_result = $2, updated_at = $3 WHERE id = $4`,
		string(model.JobStatusComplete), resultJSON, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save result %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveError(ctx context.Context, jobID string, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_jobs SET status = $1, error_message = $2, current_step = 'Error', updated_at = $3 WHERE id = $4`,
		string(model.JobStatusError), message, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save error %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var j model.Job
	var step, errMsg *string
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, research_question, status, progress, current_step, error_message, full_result, created_at, updated_at, expires_at FROM analysis_jobs WHERE id = $1`,
		jobID,
	).Scan(&j.ID, &j.Question, &j.Status, &j.Progress, &step, &errMsg, &resultJSON, &j.CreatedAt, &j.UpdatedAt, &j.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}

	if step != nil {
		j.CurrentStep = *step
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	if resultJSON != nil {
		j.Result = &model.FinalReport{}
		if err := json.Unmarshal(resultJSON, j.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, research_question, status, progress, current_step, error_message, full_result, created_at, updated_at, expires_at FROM analysis_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var step, errMsg *string
		var resultJSON []byte

		if err := rows.Scan(&j.ID, &j.Question, &j.Status, &j.Progress, &step, &errMsg, &resultJSON, &j.CreatedAt, &j.UpdatedAt, &j.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		if step != nil {
			j.CurrentStep = *step
		}
		if errMsg != nil {
			j.ErrorMessage = *errMsg
		}
		if resultJSON != nil {
			j.Result = &model.FinalReport{}
			if err := json.Unmarshal(resultJSON, j.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}
