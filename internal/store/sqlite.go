package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agent-haymaker/haymaker/internal/model"

	_ "modernc.org/sqlite"
)

const createDeploymentsTable = `
CREATE TABLE IF NOT EXISTS deployments (
    deployment_id TEXT PRIMARY KEY,
    workload_name TEXT NOT NULL,
    status        TEXT NOT NULL,
    phase         TEXT NOT NULL DEFAULT '',
    tags          TEXT NOT NULL DEFAULT '{}',
    error         TEXT NOT NULL DEFAULT '',
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. WAL mode plus a busy timeout
// make it safe for multiple concurrent CLI invocations against the same
// database file; per-record update legality is enforced by a conditional
// UPDATE guarded on the set of legal source statuses, so racing writers to
// one record take a transition exactly once.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one so
	// every caller sees the same data.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createDeploymentsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create deployments table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create allocates a fresh deployment id and inserts the initial record with
// status deploying. The primary-key constraint guarantees two concurrent
// creates can never share an id.
func (s *SQLiteStore) Create(ctx context.Context, workloadName string, cfg model.DeploymentConfig) (*model.DeploymentRecord, error) {
	now := time.Now().UTC()
	rec := &model.DeploymentRecord{
		DeploymentID: model.NewDeploymentID(),
		WorkloadName: workloadName,
		Status:       model.StatusDeploying,
		Tags:         cfg.Tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deployments (
			deployment_id, workload_name, status, phase, tags, error,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DeploymentID, rec.WorkloadName, rec.Status, rec.Phase, tags, rec.Error,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert deployment: %w", err)
	}
	return rec, nil
}

// Get retrieves a deployment record by id.
func (s *SQLiteStore) Get(ctx context.Context, deploymentID string) (*model.DeploymentRecord, error) {
	return scanRecord(s.db.QueryRowContext(ctx,
		`SELECT deployment_id, workload_name, status, phase, tags, error,
			created_at, updated_at
		FROM deployments WHERE deployment_id = ?`, deploymentID,
	))
}

// Update applies a partial update to a record. A requested status must be a
// legal transition from the current status or the update is rejected with
// ErrInvalidTransition. The transition guard is a single conditional UPDATE
// (compare-and-swap on the current status), so concurrent writers to the same
// record cannot both take the same edge.
func (s *SQLiteStore) Update(ctx context.Context, deploymentID string, upd RecordUpdate) (*model.DeploymentRecord, error) {
	set := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if upd.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Phase != nil {
		set = append(set, "phase = ?")
		args = append(args, *upd.Phase)
	}
	if upd.Error != nil {
		set = append(set, "error = ?")
		args = append(args, *upd.Error)
	}

	where := "deployment_id = ?"
	args = append(args, deploymentID)
	if upd.Status != nil {
		sources := model.LegalSources(*upd.Status)
		if len(sources) == 0 {
			return nil, fmt.Errorf("no status reaches %q: %w", *upd.Status, ErrInvalidTransition)
		}
		where += " AND status IN (?" + strings.Repeat(", ?", len(sources)-1) + ")"
		for _, src := range sources {
			args = append(args, src)
		}
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE deployments SET "+strings.Join(set, ", ")+" WHERE "+where, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update deployment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a missing record from an illegal transition.
		rec, getErr := s.Get(ctx, deploymentID)
		if getErr != nil {
			return nil, getErr
		}
		if upd.Status == nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s -> %s: %w", rec.Status, *upd.Status, ErrInvalidTransition)
	}

	return s.Get(ctx, deploymentID)
}

// AdoptID rekeys a record to the canonical id the workload returned from
// deploy. The primary-key constraint rejects a collision with an existing id.
func (s *SQLiteStore) AdoptID(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE deployments SET deployment_id = ?, updated_at = ? WHERE deployment_id = ?",
		newID, time.Now().UTC(), oldID,
	)
	if err != nil {
		return fmt.Errorf("adopt deployment id %q: %w", newID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns records matching filter ordered by created_at DESC, capped at
// limit. Filters are conjunctive.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter, limit int) ([]*model.DeploymentRecord, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT deployment_id, workload_name, status, phase, tags, error,
			created_at, updated_at
		FROM deployments`)

	var conds []string
	var args []any
	if filter.WorkloadName != "" {
		conds = append(conds, "workload_name = ?")
		args = append(args, filter.WorkloadName)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC, deployment_id DESC LIMIT ?")
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var records []*model.DeploymentRecord
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*model.DeploymentRecord, error) {
	rec, err := scanRecordRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func scanRecordRow(row rowScanner) (*model.DeploymentRecord, error) {
	rec := &model.DeploymentRecord{}
	var tags string
	err := row.Scan(
		&rec.DeploymentID, &rec.WorkloadName, &rec.Status, &rec.Phase, &tags,
		&rec.Error, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan deployment: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return rec, nil
}

func encodeTags(tags map[string]string) (string, error) {
	if tags == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(raw), nil
}
