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

// Package rbaccollector takes a point-in-time snapshot of a cluster's RBAC
// state from its system tables and normalizes it into Postgres rows.
package rbaccollector

import "time"

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one collection attempt against a cluster.
type Run struct {
	ID          int64      `db:"id"`
	ClusterID   int64      `db:"cluster_id"`
	Status      string     `db:"status"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	RawPayload  *string    `db:"raw_payload"`
	Error       *string    `db:"error"`
}

type User struct {
	ID               int64  `db:"id"`
	SnapshotID       int64  `db:"snapshot_id"`
	Name             string `db:"name"`
	Storage          *string `db:"storage"`
	AuthType         *string `db:"auth_type"`
	HostIP           string `db:"host_ip"`
	HostNames        string `db:"host_names"`
	DefaultRolesAll  bool   `db:"default_roles_all"`
	DefaultRolesList string `db:"default_roles_list"`
	GranteesAny      bool   `db:"grantees_any"`
	GranteesList     string `db:"grantees_list"`
}

type Role struct {
	ID         int64   `db:"id"`
	SnapshotID int64   `db:"snapshot_id"`
	Name       string  `db:"name"`
	Storage    *string `db:"storage"`
}

type RoleGrant struct {
	ID              int64   `db:"id"`
	SnapshotID      int64   `db:"snapshot_id"`
	UserName        *string `db:"user_name"`
	RoleName        *string `db:"role_name"`
	GrantedRoleName string  `db:"granted_role_name"`
	IsDefault       bool    `db:"is_default"`
	WithAdminOption bool    `db:"with_admin_option"`
}

type Privilege struct {
	ID              int64   `db:"id"`
	SnapshotID      int64   `db:"snapshot_id"`
	UserName        *string `db:"user_name"`
	RoleName        *string `db:"role_name"`
	AccessType      string  `db:"access_type"`
	Database        *string `db:"database"`
	TableName       *string `db:"table_name"`
	ColumnName      *string `db:"column_name"`
	IsPartialRevoke bool    `db:"is_partial_revoke"`
	GrantOption     bool    `db:"grant_option"`
}

// Snapshot is the fully normalized result of one collection run.
type Snapshot struct {
	Run        Run
	Users      []User
	Roles      []Role
	RoleGrants []RoleGrant
	Privileges []Privilege
}
