package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/growthlens/audit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
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
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS audit_runs (
	id         TEXT PRIMARY KEY,
	company    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS audit_sections (
	run_id     TEXT NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
	section    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	result     TEXT,
	error      TEXT,
	usage      TEXT,
	duration   INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, section)
);

CREATE INDEX IF NOT EXISTS idx_audit_runs_status ON audit_runs(status);
CREATE INDEX IF NOT EXISTS idx_audit_runs_company ON audit_runs(company);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, company model.CompanyInfo) (*model.AuditRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	companyJSON, err := json.Marshal(company)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal company")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_runs (id, company, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(companyJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.AuditRun{
		ID:        id,
		Company:   company,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.AggregatedResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.AuditRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company, status, result, created_at, updated_at FROM audit_runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}
	if run.Sections, err = s.loadSections(ctx, runID); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.AuditRun, error) {
	query := `SELECT id, company, status, result, created_at, updated_at FROM audit_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Domain != "" {
		query += ` AND json_extract(company, '$.domain') = ?`
		args = append(args, filter.Domain)
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
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.AuditRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM audit_sections WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: delete sections for run %s", runID)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_runs WHERE id = ?`, runID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpsertSection(ctx context.Context, runID string, state model.SectionState) error {
	resultJSON, usageJSON, err := marshalSection(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_sections (run_id, section, status, result, error, usage, duration, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, section) DO UPDATE SET
		   status = excluded.status, result = excluded.result, error = excluded.error,
		   usage = excluded.usage, duration = excluded.duration, updated_at = excluded.updated_at`,
		runID, string(state.Section), string(state.Status), resultJSON, state.Error,
		usageJSON, state.Duration, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert section %s for run %s", state.Section, runID)
}

func (s *SQLiteStore) loadSections(ctx context.Context, runID string) ([]model.SectionState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT section, status, result, error, usage, duration FROM audit_sections WHERE run_id = ?`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load sections for run %s", runID)
	}
	defer rows.Close()

	byName := make(map[model.Section]model.SectionState)
	for rows.Next() {
		st, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		byName[st.Section] = st
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load sections iterate")
	}
	return orderSections(byName), nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.AuditRun, error) {
	var r model.AuditRun
	var companyJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &companyJSON, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	if err := json.Unmarshal([]byte(companyJSON), &r.Company); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal company")
	}
	if resultJSON.Valid && resultJSON.String != "" {
		r.Result = &model.AggregatedResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal result")
		}
	}
	return &r, nil
}

func scanSection(row scannable) (model.SectionState, error) {
	var st model.SectionState
	var resultJSON, errText, usageJSON sql.NullString

	if err := row.Scan(&st.Section, &st.Status, &resultJSON, &errText, &usageJSON, &st.Duration); err != nil {
		return st, eris.Wrap(err, "store: scan section")
	}
	st.Error = errText.String
	if resultJSON.Valid && resultJSON.String != "" {
		st.Result = &model.AnalysisResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), st.Result); err != nil {
			return st, eris.Wrap(err, "store: unmarshal section result")
		}
	}
	if usageJSON.Valid && usageJSON.String != "" {
		if err := json.Unmarshal([]byte(usageJSON.String), &st.Usage); err != nil {
			return st, eris.Wrap(err, "store: unmarshal section usage")
		}
	}
	return st, nil
}

func marshalSection(state model.SectionState) (resultJSON, usageJSON string, err error) {
	if state.Result != nil {
		data, err := json.Marshal(state.Result)
		if err != nil {
			return "", "", eris.Wrap(err, "store: marshal section result")
		}
		resultJSON = string(data)
	}
	data, err := json.Marshal(state.Usage)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal section usage")
	}
	return resultJSON, string(data), nil
}

// orderSections returns the states in AllSections order, with any
// unknown sections appended afterwards so nothing silently drops.
func orderSections(byName map[model.Section]model.SectionState) []model.SectionState {
	var out []model.SectionState
	for _, s := range model.AllSections {
		if st, ok := byName[s]; ok {
			out = append(out, st)
			delete(byName, s)
		}
	}
	for _, st := range byName {
		out = append(out, st)
	}
	return out
}
