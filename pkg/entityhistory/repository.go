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

package entityhistory

import (
	"context"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Repository persists and reads the entity_history table.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends one applied-change row.
func (r *Repository) Insert(ctx context.Context, row *Row) error {
	const q = `
		INSERT INTO entity_history (cluster_id, entity_type, entity_name, action, details, proposal_id, job_id, actor_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	dbRow := r.db.QueryRowxContext(ctx, q,
		row.ClusterID, row.EntityType, row.EntityName, row.Action,
		row.Details, row.ProposalID, row.JobID, row.ActorUserID)
	if err := dbRow.Scan(&row.ID, &row.CreatedAt); err != nil {
		return apperrors.NewDatabaseError("insert entity history", err)
	}
	return nil
}

// ListByCluster returns a cluster's applied-change rows, newest first.
func (r *Repository) ListByCluster(ctx context.Context, clusterID int64) ([]Row, error) {
	var rows []Row
	const q = `
		SELECT id, cluster_id, entity_type, entity_name, action, details, proposal_id, job_id, actor_user_id, created_at
		FROM entity_history WHERE cluster_id = $1 ORDER BY id DESC`
	if err := r.db.SelectContext(ctx, &rows, q, clusterID); err != nil {
		return nil, apperrors.NewDatabaseError("list entity history", err)
	}
	return rows, nil
}
