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

package clusterregistry

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Repository is the Postgres-backed store for clusters.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const clusterColumns = `
	id, name, host, port, protocol, username, password_ciphertext,
	default_database, is_deleted, health_status, last_tested_at,
	latency_ms, server_version, detected_current_user, error_code,
	error_message, created_by, created_at, updated_at`

// Create inserts c and populates its generated id and timestamps.
func (r *Repository) Create(ctx context.Context, c *Cluster) error {
	const q = `
		INSERT INTO clusters (
			name, host, port, protocol, username, password_ciphertext,
			default_database, health_status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, q,
		c.Name, c.Host, c.Port, c.Protocol, c.Username, c.PasswordCiphertext,
		c.DefaultDatabase, HealthNeverTested, c.CreatedBy)

	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("a cluster with this name already exists")
		}
		return apperrors.NewDatabaseError("create cluster", err)
	}
	c.HealthStatus = HealthNeverTested
	return nil
}

// Get returns a cluster by id regardless of its deletion state, so
// foreign references from proposals/jobs/history stay resolvable.
func (r *Repository) Get(ctx context.Context, id int64) (*Cluster, error) {
	var c Cluster
	query := "SELECT" + clusterColumns + " FROM clusters WHERE id = $1"
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("cluster")
		}
		return nil, apperrors.NewDatabaseError("get cluster", err)
	}
	return &c, nil
}

// List returns every non-deleted cluster, ordered by name.
func (r *Repository) List(ctx context.Context) ([]*Cluster, error) {
	var clusters []*Cluster
	query := "SELECT" + clusterColumns + " FROM clusters WHERE NOT is_deleted ORDER BY name"
	if err := r.db.SelectContext(ctx, &clusters, query); err != nil {
		return nil, apperrors.NewDatabaseError("list clusters", err)
	}
	return clusters, nil
}

// Update persists every mutable field of c (including diagnostic fields
// reset or set by the state machine) and bumps updated_at.
func (r *Repository) Update(ctx context.Context, c *Cluster) error {
	const q = `
		UPDATE clusters SET
			name = $1, host = $2, port = $3, protocol = $4, username = $5,
			password_ciphertext = $6, default_database = $7,
			health_status = $8, last_tested_at = $9, latency_ms = $10,
			server_version = $11, detected_current_user = $12,
			error_code = $13, error_message = $14, updated_at = now()
		WHERE id = $15 AND NOT is_deleted
		RETURNING updated_at`

	row := r.db.QueryRowxContext(ctx, q,
		c.Name, c.Host, c.Port, c.Protocol, c.Username, c.PasswordCiphertext,
		c.DefaultDatabase, c.HealthStatus, c.LastTestedAt, c.LatencyMS,
		c.ServerVersion, c.DetectedCurrentUser, c.ErrorCode, c.ErrorMessage,
		c.ID)

	if err := row.Scan(&c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return apperrors.NewNotFoundError("cluster")
		}
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("a cluster with this name already exists")
		}
		return apperrors.NewDatabaseError("update cluster", err)
	}
	return nil
}

// SoftDelete flips is_deleted without removing the row, preserving
// foreign references from proposals, jobs, and history.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	const q = `UPDATE clusters SET is_deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT is_deleted`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return apperrors.NewDatabaseError("delete cluster", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseError("delete cluster", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("cluster")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// Matches Postgres' SQLSTATE 23505 text without importing the
	// pgconn error type, so this package stays driver-agnostic.
	return err != nil && containsSQLState(err.Error(), "23505")
}

func containsSQLState(msg, code string) bool {
	for i := 0; i+len(code) <= len(msg); i++ {
		if msg[i:i+len(code)] == code {
			return true
		}
	}
	return false
}
