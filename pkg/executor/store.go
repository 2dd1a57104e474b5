/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package executor

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Store is the executor's own Postgres namespace: jobs and job_steps.
// The governance service never writes here; it holds only the job_id
// back-reference.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const jobColumns = `
	id, proposal_id, cluster_id, actor_user_id, correlation_id, mode,
	status, error, created_at, completed_at`

// FindByCorrelationID returns the job admitted under correlationID, or
// nil when none exists. The unique index on correlation_id makes this the
// idempotency lookup.
func (s *Store) FindByCorrelationID(ctx context.Context, correlationID string) (*Job, error) {
	var job Job
	query := "SELECT" + jobColumns + " FROM jobs WHERE correlation_id = $1"
	if err := s.db.GetContext(ctx, &job, query, correlationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("find job by correlation id", err)
	}
	return &job, nil
}

// CreateJob inserts job and populates its generated id and created_at. A
// duplicate correlation_id surfaces as Conflict so the caller can fall
// back to the already-admitted row.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	const q = `
		INSERT INTO jobs (proposal_id, cluster_id, actor_user_id, correlation_id, mode, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	row := s.db.QueryRowxContext(ctx, q,
		job.ProposalID, job.ClusterID, job.ActorUserID, job.CorrelationID, job.Mode, job.Status)
	if err := row.Scan(&job.ID, &job.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("a job with this correlation id already exists")
		}
		return apperrors.NewDatabaseError("create job", err)
	}
	return nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	var job Job
	query := "SELECT" + jobColumns + " FROM jobs WHERE id = $1"
	if err := s.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("job")
		}
		return nil, apperrors.NewDatabaseError("get job", err)
	}
	return &job, nil
}

// ListJobs returns jobs newest first, optionally filtered by proposal.
func (s *Store) ListJobs(ctx context.Context, proposalID *int64) ([]*Job, error) {
	var jobs []*Job
	query := "SELECT" + jobColumns + " FROM jobs"
	args := []any{}
	if proposalID != nil {
		query += " WHERE proposal_id = $1"
		args = append(args, *proposalID)
	}
	query += " ORDER BY id DESC"
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, apperrors.NewDatabaseError("list jobs", err)
	}
	return jobs, nil
}

// InsertSteps bulk-inserts a job's materialized steps.
func (s *Store) InsertSteps(ctx context.Context, steps []Step) error {
	const q = `
		INSERT INTO job_steps (job_id, step_index, operation_type, sql_statement, compensation_sql, status, result_message, executed_at)
		VALUES (:job_id, :step_index, :operation_type, :sql_statement, :compensation_sql, :status, :result_message, :executed_at)`

	for i := range steps {
		if _, err := s.db.NamedExecContext(ctx, q, steps[i]); err != nil {
			return apperrors.NewDatabaseError("insert job step", err)
		}
	}
	return nil
}

// UpdateStep persists one step's status, message, and execution time.
func (s *Store) UpdateStep(ctx context.Context, step Step) error {
	const q = `
		UPDATE job_steps SET status = $1, result_message = $2, executed_at = $3
		WHERE job_id = $4 AND step_index = $5`
	if _, err := s.db.ExecContext(ctx, q,
		step.Status, step.ResultMessage, step.ExecutedAt, step.JobID, step.StepIndex); err != nil {
		return apperrors.NewDatabaseError("update job step", err)
	}
	return nil
}

// ListSteps returns a job's steps in step_index order.
func (s *Store) ListSteps(ctx context.Context, jobID int64) ([]Step, error) {
	var steps []Step
	const q = `
		SELECT job_id, step_index, operation_type, sql_statement, compensation_sql, status, result_message, executed_at
		FROM job_steps WHERE job_id = $1 ORDER BY step_index`
	if err := s.db.SelectContext(ctx, &steps, q, jobID); err != nil {
		return nil, apperrors.NewDatabaseError("list job steps", err)
	}
	return steps, nil
}

// FinishJob records the job's terminal status, error summary, and
// completion time.
func (s *Store) FinishJob(ctx context.Context, jobID int64, status string, jobError *string, at time.Time) error {
	const q = `UPDATE jobs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`
	if _, err := s.db.ExecContext(ctx, q, status, jobError, at, jobID); err != nil {
		return apperrors.NewDatabaseError("finish job", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key")
}
