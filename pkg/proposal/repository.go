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

package proposal

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Repository is the Postgres-backed store for proposals, their operation
// lists, and their review decisions. Decide and ClaimExecution read the
// status under SELECT ... FOR UPDATE inside a single transaction, so two
// clients racing the same transition cannot both claim it;
// FinishExecution is a single UPDATE conditioned on status = executing.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const proposalColumns = `
	id, cluster_id, created_by, status, type, title, description, reason,
	is_elevated, sql_preview, compensation_sql, job_id, executed_by,
	executed_at, db_name, table_name, target_type, target_name,
	created_at, updated_at`

// Create inserts p and its operation rows in one transaction, populating
// generated ids and timestamps.
func (r *Repository) Create(ctx context.Context, p *Proposal, ops []Operation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError("begin create proposal", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertProposal = `
		INSERT INTO proposals (
			cluster_id, created_by, status, type, title, description, reason,
			is_elevated, sql_preview, compensation_sql,
			db_name, table_name, target_type, target_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	row := tx.QueryRowxContext(ctx, insertProposal,
		p.ClusterID, p.CreatedBy, p.Status, p.Type, p.Title, p.Description,
		p.Reason, p.IsElevated, p.SQLPreview, p.CompensationSQL,
		p.DBName, p.TableName, p.TargetType, p.TargetName)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return apperrors.NewDatabaseError("insert proposal", err)
	}

	const insertOp = `
		INSERT INTO proposal_operations (
			proposal_id, order_index, operation_type, params, sql_preview, compensation_sql
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range ops {
		ops[i].ProposalID = p.ID
		row := tx.QueryRowxContext(ctx, insertOp,
			p.ID, ops[i].OrderIndex, ops[i].OperationType, ops[i].Params,
			ops[i].SQLPreview, ops[i].CompensationSQL)
		if err := row.Scan(&ops[i].ID); err != nil {
			return apperrors.NewDatabaseError("insert proposal operation", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseError("commit create proposal", err)
	}
	return nil
}

// Get returns a proposal by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Proposal, error) {
	var p Proposal
	query := "SELECT" + proposalColumns + " FROM proposals WHERE id = $1"
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("proposal")
		}
		return nil, apperrors.NewDatabaseError("get proposal", err)
	}
	return &p, nil
}

// List returns proposals, newest first, optionally filtered by cluster.
func (r *Repository) List(ctx context.Context, clusterID *int64) ([]*Proposal, error) {
	var proposals []*Proposal
	query := "SELECT" + proposalColumns + " FROM proposals"
	args := []any{}
	if clusterID != nil {
		query += " WHERE cluster_id = $1"
		args = append(args, *clusterID)
	}
	query += " ORDER BY id DESC"
	if err := r.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, apperrors.NewDatabaseError("list proposals", err)
	}
	return proposals, nil
}

// ListOperations returns a proposal's operation rows in order_index order.
func (r *Repository) ListOperations(ctx context.Context, proposalID int64) ([]Operation, error) {
	var ops []Operation
	const q = `
		SELECT id, proposal_id, order_index, operation_type, params, sql_preview, compensation_sql
		FROM proposal_operations WHERE proposal_id = $1 ORDER BY order_index`
	if err := r.db.SelectContext(ctx, &ops, q, proposalID); err != nil {
		return nil, apperrors.NewDatabaseError("list proposal operations", err)
	}
	return ops, nil
}

// ListReviews returns a proposal's decision records, oldest first.
func (r *Repository) ListReviews(ctx context.Context, proposalID int64) ([]Review, error) {
	var reviews []Review
	const q = `
		SELECT id, proposal_id, reviewer_user_id, decision, comment, created_at
		FROM proposal_reviews WHERE proposal_id = $1 ORDER BY id`
	if err := r.db.SelectContext(ctx, &reviews, q, proposalID); err != nil {
		return nil, apperrors.NewDatabaseError("list proposal reviews", err)
	}
	return reviews, nil
}

// lockStatus reads a proposal's current status under FOR UPDATE, pinning
// the row for the remainder of the transaction.
func lockStatus(ctx context.Context, tx *sqlx.Tx, id int64) (string, error) {
	var status string
	if err := tx.GetContext(ctx, &status, "SELECT status FROM proposals WHERE id = $1 FOR UPDATE", id); err != nil {
		if err == sql.ErrNoRows {
			return "", apperrors.NewNotFoundError("proposal")
		}
		return "", apperrors.NewDatabaseError("lock proposal", err)
	}
	return status, nil
}

// Decide records an approve/reject review and transitions the proposal in
// the same transaction. The FOR UPDATE lock plus the reviewable check
// guarantee at most one terminal decision per proposal.
func (r *Repository) Decide(ctx context.Context, id, reviewerUserID int64, decision string, comment *string) (*Proposal, error) {
	toStatus := StatusApproved
	if decision == DecisionRejected {
		toStatus = StatusRejected
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError("begin decide", err)
	}
	defer tx.Rollback() //nolint:errcheck

	status, err := lockStatus(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := EnsureReviewable(status); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO proposal_reviews (proposal_id, reviewer_user_id, decision, comment) VALUES ($1, $2, $3, $4)",
		id, reviewerUserID, decision, comment); err != nil {
		return nil, apperrors.NewDatabaseError("insert review", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE proposals SET status = $1, updated_at = now() WHERE id = $2",
		toStatus, id); err != nil {
		return nil, apperrors.NewDatabaseError("update proposal status", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError("commit decide", err)
	}
	return r.Get(ctx, id)
}

// ClaimExecution transitions approved → executing and records the actor,
// failing with a StateError naming the current status if another client
// claimed the proposal first.
func (r *Repository) ClaimExecution(ctx context.Context, id, actorUserID int64, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseError("begin claim execution", err)
	}
	defer tx.Rollback() //nolint:errcheck

	status, err := lockStatus(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := EnsureExecutable(status); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE proposals SET status = $1, executed_by = $2, executed_at = $3, updated_at = now() WHERE id = $4",
		StatusExecuting, actorUserID, at, id); err != nil {
		return apperrors.NewDatabaseError("claim execution", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewDatabaseError("commit claim execution", err)
	}
	return nil
}

// FinishExecution records the terminal post-execution status and the
// executor's job id back-reference.
func (r *Repository) FinishExecution(ctx context.Context, id int64, status string, jobID *int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE proposals SET status = $1, job_id = $2, updated_at = now() WHERE id = $3 AND status = $4",
		status, jobID, id, StatusExecuting); err != nil {
		return apperrors.NewDatabaseError("finish execution", err)
	}
	return nil
}
