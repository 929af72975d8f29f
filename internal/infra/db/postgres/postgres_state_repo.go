package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ctroy978/edagent/internal/domain"
	"github.com/ctroy978/edagent/internal/domain/model"
	"github.com/ctroy978/edagent/internal/domain/ports/repository"
)

var _ repository.WorkflowStateRepository = (*PostgresWorkflowStateRepo)(nil)

// PostgresWorkflowStateRepo persists workflow checkpoints in the
// workflow_states table. Structured fields (materials, flags, corrections,
// artifacts) live in JSONB columns; everything the router and sweeper query
// on (phase, job id, timestamps) gets its own column.
type PostgresWorkflowStateRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresWorkflowStateRepo(pool *pgxpool.Pool) *PostgresWorkflowStateRepo {
	return &PostgresWorkflowStateRepo{pool: pool}
}

// Save upserts the checkpoint. The job_id guard is in the SQL itself: an
// empty incoming job id never replaces a stored one, so even a buggy caller
// cannot clear it.
func (r *PostgresWorkflowStateRepo) Save(ctx context.Context, tx repository.Tx, state *model.WorkflowState) error {
	materials, err := json.Marshal(state.Materials)
	if err != nil {
		return fmt.Errorf("marshal materials: %w", err)
	}
	flags, err := json.Marshal(state.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	corrections, err := json.Marshal(state.PendingCorrections)
	if err != nil {
		return fmt.Errorf("marshal corrections: %w", err)
	}
	artifacts, err := json.Marshal(state.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	query := `
		INSERT INTO workflow_states
			(thread_id, phase, job_id, materials, flags, pending_corrections,
			 correction_rounds, artifacts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (thread_id) DO UPDATE SET
			phase               = EXCLUDED.phase,
			job_id              = COALESCE(NULLIF(EXCLUDED.job_id, ''), workflow_states.job_id),
			materials           = EXCLUDED.materials,
			flags               = EXCLUDED.flags,
			pending_corrections = EXCLUDED.pending_corrections,
			correction_rounds   = EXCLUDED.correction_rounds,
			artifacts           = EXCLUDED.artifacts,
			updated_at          = EXCLUDED.updated_at`

	state.UpdatedAt = time.Now()
	_, err = execSQL(ctx, tx, r.pool, query,
		state.ThreadID, string(state.Phase), state.JobID,
		materials, flags, corrections,
		state.CorrectionRounds, artifacts,
		state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save workflow state: %w", err)
	}
	return nil
}

func (r *PostgresWorkflowStateRepo) Find(ctx context.Context, tx repository.Tx, threadID string) (*model.WorkflowState, error) {
	query := `
		SELECT thread_id, phase, job_id, materials, flags, pending_corrections,
		       correction_rounds, artifacts, created_at, updated_at
		FROM workflow_states
		WHERE thread_id = $1`

	row, err := pickRow(ctx, tx, r.pool, query, threadID)
	if err != nil {
		return nil, err
	}
	state, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return state, err
}

func (r *PostgresWorkflowStateRepo) List(ctx context.Context, tx repository.Tx, limit int) ([]*model.WorkflowState, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT thread_id, phase, job_id, materials, flags, pending_corrections,
		       correction_rounds, artifacts, created_at, updated_at
		FROM workflow_states
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := queryRows(ctx, tx, r.pool, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*model.WorkflowState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

func (r *PostgresWorkflowStateRepo) CountStale(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM workflow_states
		WHERE phase <> 'done' AND updated_at < $1`

	row, err := pickRow(ctx, tx, r.pool, query, cutoff)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count stale: %v", domain.ErrReadDatabaseRow, err)
	}
	return n, nil
}

func scanState(row pgx.Row) (*model.WorkflowState, error) {
	var (
		state       model.WorkflowState
		phase       string
		materials   []byte
		flags       []byte
		corrections []byte
		artifacts   []byte
	)
	err := row.Scan(
		&state.ThreadID, &phase, &state.JobID,
		&materials, &flags, &corrections,
		&state.CorrectionRounds, &artifacts,
		&state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: workflow state: %v", domain.ErrReadDatabaseRow, err)
	}
	state.Phase = model.Phase(phase)
	if err := json.Unmarshal(materials, &state.Materials); err != nil {
		return nil, fmt.Errorf("%w: materials: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(flags, &state.Flags); err != nil {
		return nil, fmt.Errorf("%w: flags: %v", domain.ErrReadDatabaseRow, err)
	}
	if len(corrections) > 0 {
		if err := json.Unmarshal(corrections, &state.PendingCorrections); err != nil {
			return nil, fmt.Errorf("%w: pending corrections: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &state.Artifacts); err != nil {
			return nil, fmt.Errorf("%w: artifacts: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return &state, nil
}
