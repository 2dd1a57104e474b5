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

// Package executor runs approved change plans against a target cluster as
// ordered, per-step, compensable jobs. Admission is idempotent on
// correlation_id; forward DDL is always regenerated from params at
// execution time, never replayed from a stored string.
package executor

import (
	"time"

	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

const (
	JobStatusPending        = "pending"
	JobStatusRunning        = "running"
	JobStatusCompleted      = "completed"
	JobStatusPartialFailure = "partial_failure"
	JobStatusFailed         = "failed"
)

const (
	StepStatusPending  = "pending"
	StepStatusSuccess  = "success"
	StepStatusError    = "error"
	StepStatusSkipped  = "skipped"
	StepStatusDryRunOK = "dry_run_ok"
)

const (
	ModeDryRun = "dry_run"
	ModeApply  = "apply"
)

// Job is one execution attempt of a proposal.
type Job struct {
	ID            int64      `db:"id" json:"id"`
	ProposalID    int64      `db:"proposal_id" json:"proposal_id"`
	ClusterID     int64      `db:"cluster_id" json:"cluster_id"`
	ActorUserID   int64      `db:"actor_user_id" json:"actor_user_id"`
	CorrelationID string     `db:"correlation_id" json:"correlation_id"`
	Mode          string     `db:"mode" json:"mode"`
	Status        string     `db:"status" json:"status"`
	Error         *string    `db:"error" json:"error,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Step is the per-operation execution record within a job. SQLStatement
// holds the exact forward DDL the step ran (or would run).
type Step struct {
	JobID           int64      `db:"job_id" json:"-"`
	StepIndex       int        `db:"step_index" json:"step_index"`
	OperationType   string     `db:"operation_type" json:"operation_type"`
	SQLStatement    string     `db:"sql_statement" json:"sql_statement"`
	CompensationSQL *string    `db:"compensation_sql" json:"compensation_sql,omitempty"`
	Status          string     `db:"status" json:"status"`
	ResultMessage   *string    `db:"result_message" json:"result_message,omitempty"`
	ExecutedAt      *time.Time `db:"executed_at" json:"executed_at,omitempty"`
}

// ClusterConfig is the connection block of a job request. The password
// travels as ciphertext; the executor decrypts it in memory per call and
// never persists it.
type ClusterConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Protocol          string `json:"protocol"`
	Username          string `json:"username"`
	PasswordEncrypted string `json:"password_encrypted"`
}

// OperationSpec is one ordered operation of a job request.
type OperationSpec struct {
	OrderIndex    int                `json:"order_index"`
	OperationType string             `json:"operation_type"`
	Params        sqltemplate.Params `json:"params"`
}

// CreateJobRequest is the governance → executor job submission.
type CreateJobRequest struct {
	ProposalID    int64           `json:"proposal_id"`
	ClusterID     int64           `json:"cluster_id"`
	ActorUserID   int64           `json:"actor_user_id"`
	CorrelationID string          `json:"correlation_id"`
	Mode          string          `json:"mode"`
	ClusterConfig ClusterConfig   `json:"cluster_config"`
	Operations    []OperationSpec `json:"operations"`
}

// JobResult is a job with its materialized steps, the executor API's
// response shape.
type JobResult struct {
	Job   Job    `json:"job"`
	Steps []Step `json:"steps"`
}
