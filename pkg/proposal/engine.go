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
	"encoding/json"

	"github.com/go-logr/logr"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

// Engine validates and creates proposals, rendering the reviewer-facing
// preview SQL with masked secrets at creation time.
type Engine struct {
	repo     *Repository
	clusters *clusterregistry.Repository
	log      logr.Logger
}

func NewEngine(repo *Repository, clusters *clusterregistry.Repository, log logr.Logger) *Engine {
	return &Engine{repo: repo, clusters: clusters, log: log}
}

// OperationInput is one requested step of a multi-op proposal.
type OperationInput struct {
	OperationType string
	Params        sqltemplate.Params
}

// CreateRequest is a multi-op proposal creation.
type CreateRequest struct {
	ClusterID   int64
	CreatedBy   int64
	Title       *string
	Description *string
	Reason      *string
	Operations  []OperationInput
}

// LegacyCreateRequest is the single-op grant_select/revoke_select path.
type LegacyCreateRequest struct {
	ClusterID  int64
	CreatedBy  int64
	Type       string
	Reason     *string
	DBName     string
	TableName  string
	TargetType string
	TargetName string
}

// Create validates and persists a multi-op proposal straight into the
// review queue. Every operation_type must be known to the builder
// registry; the stored previews mask passwords and the joined
// compensation runs in reverse operation order.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*Proposal, []Operation, error) {
	cluster, err := e.clusters.Get(ctx, req.ClusterID)
	if err != nil {
		return nil, nil, err
	}
	if cluster.IsDeleted {
		return nil, nil, apperrors.NewNotFoundError("cluster")
	}
	if len(req.Operations) == 0 {
		return nil, nil, apperrors.NewValidationError("a multi-operation proposal requires at least one operation")
	}

	results := make([]sqltemplate.Result, len(req.Operations))
	ops := make([]Operation, len(req.Operations))
	elevated := false
	for i, in := range req.Operations {
		if !sqltemplate.KnownOperationType(in.OperationType) {
			return nil, nil, apperrors.Newf(apperrors.ErrorTypeValidation, "unknown operation type: %s", in.OperationType)
		}
		results[i] = sqltemplate.BuildPreview(in.OperationType, in.Params)

		if priv, ok := in.Params["privilege"].(string); ok && sqltemplate.IsBroadPrivilege(priv) {
			elevated = true
		}

		paramsJSON, err := json.Marshal(in.Params)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "unserializable operation params")
		}
		ops[i] = Operation{
			OrderIndex:      i,
			OperationType:   in.OperationType,
			Params:          paramsJSON,
			SQLPreview:      results[i].SQL,
			CompensationSQL: optionalString(results[i].Compensation),
		}
	}

	preview := sqltemplate.JoinPreview(results)
	compensation := sqltemplate.JoinCompensation(results)

	p := &Proposal{
		ClusterID:       req.ClusterID,
		CreatedBy:       req.CreatedBy,
		Status:          StatusSubmitted,
		Type:            TypeMultiOperation,
		Title:           req.Title,
		Description:     req.Description,
		Reason:          req.Reason,
		IsElevated:      elevated,
		SQLPreview:      &preview,
		CompensationSQL: optionalString(compensation),
	}
	if err := e.repo.Create(ctx, p, ops); err != nil {
		return nil, nil, err
	}

	e.log.Info("proposal created",
		"proposal_id", p.ID, "cluster_id", p.ClusterID, "operations", len(ops), "elevated", elevated)
	return p, ops, nil
}

// CreateLegacy persists a single-op grant_select/revoke_select proposal,
// carried on the proposal row itself rather than operation rows.
func (e *Engine) CreateLegacy(ctx context.Context, req LegacyCreateRequest) (*Proposal, error) {
	cluster, err := e.clusters.Get(ctx, req.ClusterID)
	if err != nil {
		return nil, err
	}
	if cluster.IsDeleted {
		return nil, apperrors.NewNotFoundError("cluster")
	}
	if req.Type != TypeGrantSelect && req.Type != TypeRevokeSelect {
		return nil, apperrors.Newf(apperrors.ErrorTypeValidation, "unknown legacy proposal type: %s", req.Type)
	}

	opType, params := LegacyOperation(req.Type, req.DBName, req.TableName, req.TargetType, req.TargetName)
	result := sqltemplate.BuildPreview(opType, params)

	p := &Proposal{
		ClusterID:       req.ClusterID,
		CreatedBy:       req.CreatedBy,
		Status:          StatusSubmitted,
		Type:            req.Type,
		Reason:          req.Reason,
		SQLPreview:      &result.SQL,
		CompensationSQL: optionalString(result.Compensation),
		DBName:          optionalString(req.DBName),
		TableName:       optionalString(req.TableName),
		TargetType:      optionalString(req.TargetType),
		TargetName:      optionalString(req.TargetName),
	}
	if err := e.repo.Create(ctx, p, nil); err != nil {
		return nil, err
	}

	e.log.Info("legacy proposal created", "proposal_id", p.ID, "cluster_id", p.ClusterID, "type", p.Type)
	return p, nil
}

// LegacyOperation synthesizes the (operation_type, params) pair a legacy
// single-op proposal executes as. The privilege is always SELECT — the
// legacy type vocabulary covers only grant_select/revoke_select.
// TODO: revisit if the legacy type vocabulary ever grows beyond SELECT.
func LegacyOperation(proposalType, dbName, tableName, targetType, targetName string) (string, sqltemplate.Params) {
	opType := "grant_privilege"
	if proposalType == TypeRevokeSelect {
		opType = "revoke_privilege"
	}
	return opType, sqltemplate.Params{
		"privilege":   "SELECT",
		"database":    dbName,
		"table":       tableName,
		"target_type": targetType,
		"target_name": targetName,
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
