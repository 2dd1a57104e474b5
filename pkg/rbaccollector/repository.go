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

package rbaccollector

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Repository persists snapshot runs and their normalized RBAC rows.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateRun inserts a pending run for clusterID and populates run.ID.
func (r *Repository) CreateRun(ctx context.Context, clusterID int64) (*Run, error) {
	run := &Run{ClusterID: clusterID, Status: RunStatusPending}
	const q = `INSERT INTO snapshot_runs (cluster_id, status) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, q, clusterID, RunStatusPending).Scan(&run.ID); err != nil {
		return nil, apperrors.NewDatabaseError("create snapshot run", err)
	}
	return run, nil
}

// MarkRunning transitions run to running and stamps started_at.
func (r *Repository) MarkRunning(ctx context.Context, runID int64) error {
	const q = `UPDATE snapshot_runs SET status = $1, started_at = now() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, q, RunStatusRunning, runID); err != nil {
		return apperrors.NewDatabaseError("mark snapshot run running", err)
	}
	return nil
}

// MarkCompleted transitions run to completed and stores rawPayload.
func (r *Repository) MarkCompleted(ctx context.Context, runID int64, rawPayload string) error {
	const q = `UPDATE snapshot_runs SET status = $1, completed_at = now(), raw_payload = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, q, RunStatusCompleted, rawPayload, runID); err != nil {
		return apperrors.NewDatabaseError("mark snapshot run completed", err)
	}
	return nil
}

// MarkFailed transitions run to failed and records the error.
func (r *Repository) MarkFailed(ctx context.Context, runID int64, cause string) error {
	const q = `UPDATE snapshot_runs SET status = $1, completed_at = now(), error = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, q, RunStatusFailed, cause, runID); err != nil {
		return apperrors.NewDatabaseError("mark snapshot run failed", err)
	}
	return nil
}

// GetRun returns a run by id.
func (r *Repository) GetRun(ctx context.Context, runID int64) (*Run, error) {
	var run Run
	const q = `SELECT id, cluster_id, status, started_at, completed_at, raw_payload, error FROM snapshot_runs WHERE id = $1`
	if err := r.db.GetContext(ctx, &run, q, runID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("snapshot run")
		}
		return nil, apperrors.NewDatabaseError("get snapshot run", err)
	}
	return &run, nil
}

// LatestCompletedRun returns the newest completed run for clusterID, the
// default snapshot the explorer endpoints resolve against.
func (r *Repository) LatestCompletedRun(ctx context.Context, clusterID int64) (*Run, error) {
	var run Run
	const q = `SELECT id, cluster_id, status, started_at, completed_at, raw_payload, error FROM snapshot_runs WHERE cluster_id = $1 AND status = 'completed' ORDER BY id DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &run, q, clusterID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NewNotFoundError("completed snapshot")
		}
		return nil, apperrors.NewDatabaseError("get latest snapshot run", err)
	}
	return &run, nil
}

// ListRuns returns every run for clusterID, most recent first.
func (r *Repository) ListRuns(ctx context.Context, clusterID int64) ([]*Run, error) {
	var runs []*Run
	const q = `SELECT id, cluster_id, status, started_at, completed_at, raw_payload, error FROM snapshot_runs WHERE cluster_id = $1 ORDER BY id DESC`
	if err := r.db.SelectContext(ctx, &runs, q, clusterID); err != nil {
		return nil, apperrors.NewDatabaseError("list snapshot runs", err)
	}
	return runs, nil
}

// StoreNormalized bulk-inserts every normalized row under snapshotID.
// Each entity set is inserted independently; an empty set is a no-op.
func (r *Repository) StoreNormalized(ctx context.Context, snapshotID int64, users []User, roles []Role, roleGrants []RoleGrant, privileges []Privilege) error {
	for i := range users {
		users[i].SnapshotID = snapshotID
	}
	for i := range roles {
		roles[i].SnapshotID = snapshotID
	}
	for i := range roleGrants {
		roleGrants[i].SnapshotID = snapshotID
	}
	for i := range privileges {
		privileges[i].SnapshotID = snapshotID
	}

	if len(users) > 0 {
		const q = `INSERT INTO snapshot_users (
			snapshot_id, name, storage, auth_type, host_ip, host_names,
			default_roles_all, default_roles_list, grantees_any, grantees_list
		) VALUES (
			:snapshot_id, :name, :storage, :auth_type, :host_ip, :host_names,
			:default_roles_all, :default_roles_list, :grantees_any, :grantees_list
		)`
		if _, err := r.db.NamedExecContext(ctx, q, users); err != nil {
			return apperrors.NewDatabaseError("store snapshot users", err)
		}
	}

	if len(roles) > 0 {
		const q = `INSERT INTO snapshot_roles (snapshot_id, name, storage) VALUES (:snapshot_id, :name, :storage)`
		if _, err := r.db.NamedExecContext(ctx, q, roles); err != nil {
			return apperrors.NewDatabaseError("store snapshot roles", err)
		}
	}

	if len(roleGrants) > 0 {
		const q = `INSERT INTO snapshot_role_grants (
			snapshot_id, user_name, role_name, granted_role_name, is_default, with_admin_option
		) VALUES (
			:snapshot_id, :user_name, :role_name, :granted_role_name, :is_default, :with_admin_option
		)`
		if _, err := r.db.NamedExecContext(ctx, q, roleGrants); err != nil {
			return apperrors.NewDatabaseError("store snapshot role grants", err)
		}
	}

	if len(privileges) > 0 {
		const q = `INSERT INTO snapshot_privileges (
			snapshot_id, user_name, role_name, access_type, database, table_name,
			column_name, is_partial_revoke, grant_option
		) VALUES (
			:snapshot_id, :user_name, :role_name, :access_type, :database, :table_name,
			:column_name, :is_partial_revoke, :grant_option
		)`
		if _, err := r.db.NamedExecContext(ctx, q, privileges); err != nil {
			return apperrors.NewDatabaseError("store snapshot privileges", err)
		}
	}

	return nil
}

// LoadSnapshot reads back every normalized row for a completed run.
func (r *Repository) LoadSnapshot(ctx context.Context, runID int64) (*Snapshot, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Run: *run}

	if err := r.db.SelectContext(ctx, &snap.Users,
		`SELECT id, snapshot_id, name, storage, auth_type, host_ip, host_names, default_roles_all, default_roles_list, grantees_any, grantees_list FROM snapshot_users WHERE snapshot_id = $1`, runID); err != nil {
		return nil, apperrors.NewDatabaseError("load snapshot users", err)
	}
	if err := r.db.SelectContext(ctx, &snap.Roles,
		`SELECT id, snapshot_id, name, storage FROM snapshot_roles WHERE snapshot_id = $1`, runID); err != nil {
		return nil, apperrors.NewDatabaseError("load snapshot roles", err)
	}
	if err := r.db.SelectContext(ctx, &snap.RoleGrants,
		`SELECT id, snapshot_id, user_name, role_name, granted_role_name, is_default, with_admin_option FROM snapshot_role_grants WHERE snapshot_id = $1`, runID); err != nil {
		return nil, apperrors.NewDatabaseError("load snapshot role grants", err)
	}
	if err := r.db.SelectContext(ctx, &snap.Privileges,
		`SELECT id, snapshot_id, user_name, role_name, access_type, database, table_name, column_name, is_partial_revoke, grant_option FROM snapshot_privileges WHERE snapshot_id = $1`, runID); err != nil {
		return nil, apperrors.NewDatabaseError("load snapshot privileges", err)
	}

	return snap, nil
}
