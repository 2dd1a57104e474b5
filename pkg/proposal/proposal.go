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

// Package proposal owns the reviewable change-set lifecycle: drafting,
// submission, the approve/reject decision, and the preview SQL a reviewer
// sees. Execution itself lives in pkg/orchestration; this package only
// guards the state machine and the stored operation list.
package proposal

import "time"

const (
	StatusDraft             = "draft"
	StatusSubmitted         = "submitted"
	StatusApproved          = "approved"
	StatusRejected          = "rejected"
	StatusExecuting         = "executing"
	StatusExecuted          = "executed"
	StatusPartiallyExecuted = "partially_executed"
	StatusFailed            = "failed"
)

const (
	TypeGrantSelect    = "grant_select"
	TypeRevokeSelect   = "revoke_select"
	TypeMultiOperation = "multi_operation"
)

const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Proposal is a reviewable change set against one cluster. The legacy
// single-op fields (DBName..TargetName) are populated only for
// grant_select/revoke_select proposals created through the legacy path.
type Proposal struct {
	ID              int64      `db:"id"`
	ClusterID       int64      `db:"cluster_id"`
	CreatedBy       int64      `db:"created_by"`
	Status          string     `db:"status"`
	Type            string     `db:"type"`
	Title           *string    `db:"title"`
	Description     *string    `db:"description"`
	Reason          *string    `db:"reason"`
	IsElevated      bool       `db:"is_elevated"`
	SQLPreview      *string    `db:"sql_preview"`
	CompensationSQL *string    `db:"compensation_sql"`
	JobID           *int64     `db:"job_id"`
	ExecutedBy      *int64     `db:"executed_by"`
	ExecutedAt      *time.Time `db:"executed_at"`
	DBName          *string    `db:"db_name"`
	TableName       *string    `db:"table_name"`
	TargetType      *string    `db:"target_type"`
	TargetName      *string    `db:"target_name"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Operation is one ordered step of a multi-op proposal. Operations are
// created with the proposal and never mutated afterwards.
type Operation struct {
	ID              int64   `db:"id"`
	ProposalID      int64   `db:"proposal_id"`
	OrderIndex      int     `db:"order_index"`
	OperationType   string  `db:"operation_type"`
	Params          []byte  `db:"params"`
	SQLPreview      string  `db:"sql_preview"`
	CompensationSQL *string `db:"compensation_sql"`
}

// Review is one append-only decision record.
type Review struct {
	ID             int64     `db:"id"`
	ProposalID     int64     `db:"proposal_id"`
	ReviewerUserID int64     `db:"reviewer_user_id"`
	Decision       string    `db:"decision"`
	Comment        *string   `db:"comment"`
	CreatedAt      time.Time `db:"created_at"`
}
