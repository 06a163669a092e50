package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/growthlens/audit-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements
// it, which keeps the postgres paths testable without a server.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id         TEXT PRIMARY KEY,
	company    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_sections (
	run_id     TEXT NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
	section    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	result     JSONB,
	error      TEXT,
	usage      JSONB,
	duration   BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, section)
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_status ON audit_runs(status);
CREATE INDEX IF NOT EXISTS idx_audit_runs_company ON audit_runs((company->>'domain'));
`

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

func (s *PostgresStore) CreateRun(ctx context.Context, company model.CompanyInfo) (*model.AuditRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal company")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_runs (id, company, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, companyJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.AuditRun{
		ID:        id,
		Company:   company,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.AggregatedResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run result %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.AuditRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, company, status, result, created_at, updated_at FROM audit_runs WHERE id = $1`,
		runID,
	)
	run, err := scanPgRun(row)
	if err != nil {
		return nil, err
	}
	if run.Sections, err = s.loadSections(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error) {
	query := `SELECT id, company, status, result, created_at, updated_at FROM audit_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		query += ` AND company->>'domain' = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.AuditRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) DeleteRun(ctx context.Context, runID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_runs WHERE id = $1`, runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete run %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) UpsertSection(ctx context.Context, runID string, state model.SectionState) error {
	resultJSON, usageJSON, err := marshalSection(state)
	if err != nil {
		return err
	}
	var result any
	if resultJSON != "" {
		result = []byte(resultJSON)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_sections (run_id, section, status, result, error, usage, duration, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (run_id, section) DO UPDATE SET
		   status = excluded.status, result = excluded.result, error = excluded.error,
		   usage = excluded.usage, duration = excluded.duration, updated_at = excluded.updated_at`,
		runID, string(state.Section), string(state.Status), result, state.Error,
		[]byte(usageJSON), state.Duration, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert section %s for run %s", state.Section, runID)
}

func (s *PostgresStore) loadSections(ctx context.Context, runID string) ([]model.SectionState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT section, status, result, error, usage, duration FROM audit_sections WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load sections for run %s", runID)
	}
	defer rows.Close()

	byName := make(map[model.Section]model.SectionState)
	for rows.Next() {
		st, err := scanPgSection(rows)
		if err != nil {
			return nil, err
		}
		byName[st.Section] = st
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load sections iterate")
	}
	return orderSections(byName), nil
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanPgRun(row pgx.Row) (*model.AuditRun, error) {
	var r model.AuditRun
	var companyJSON, resultJSON []byte

	err := row.Scan(&r.ID, &companyJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(companyJSON, &r.Company); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal company")
	}
	if len(resultJSON) > 0 {
		r.Result = &model.AggregatedResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func scanPgSection(row pgx.Row) (model.SectionState, error) {
	var st model.SectionState
	var resultJSON, usageJSON []byte
	var errText *string

	if err := row.Scan(&st.Section, &st.Status, &resultJSON, &errText, &usageJSON, &st.Duration); err != nil {
		return st, eris.Wrap(err, "postgres: scan section")
	}
	if errText != nil {
		st.Error = *errText
	}
	if len(resultJSON) > 0 {
		st.Result = &model.AnalysisResult{}
		if err := json.Unmarshal(resultJSON, st.Result); err != nil {
			return st, eris.Wrap(err, "postgres: unmarshal section result")
		}
	}
	if len(usageJSON) > 0 {
		if err := json.Unmarshal(usageJSON, &st.Usage); err != nil {
			return st, eris.Wrap(err, "postgres: unmarshal section usage")
		}
	}
	return st, nil
}

