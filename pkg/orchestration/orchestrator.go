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

package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
	"github.com/jordigilh/govrbac/pkg/entityhistory"
	"github.com/jordigilh/govrbac/pkg/executor"
	"github.com/jordigilh/govrbac/pkg/proposal"
	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

// JobSubmitter posts a job request to the executor. Satisfied by
// ExecutorClient; tests substitute a fake.
type JobSubmitter interface {
	CreateJob(ctx context.Context, req executor.CreateJobRequest) (*executor.JobResult, error)
}

// Orchestrator drives dry-run and apply for a proposal and maps the job
// outcome back onto the proposal's lifecycle.
type Orchestrator struct {
	proposals *proposal.Repository
	clusters  *clusterregistry.Repository
	history   *entityhistory.Repository
	client    JobSubmitter
	log       logr.Logger
}

func NewOrchestrator(proposals *proposal.Repository, clusters *clusterregistry.Repository, history *entityhistory.Repository, client JobSubmitter, log logr.Logger) *Orchestrator {
	return &Orchestrator{
		proposals: proposals,
		clusters:  clusters,
		history:   history,
		client:    client,
		log:       log,
	}
}

// DryRun validates a proposal against the executor without touching the
// cluster or the proposal's status. Permitted from submitted or approved.
func (o *Orchestrator) DryRun(ctx context.Context, proposalID, actorUserID int64) (*executor.JobResult, error) {
	p, err := o.proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if err := proposal.EnsureDryRunnable(p.Status); err != nil {
		return nil, err
	}

	req, err := o.buildRequest(ctx, p, executor.ModeDryRun, actorUserID,
		fmt.Sprintf("dryrun-%d-%s", p.ID, correlationSuffix()))
	if err != nil {
		return nil, err
	}
	return o.client.CreateJob(ctx, req)
}

// Execute applies an approved proposal: claim the executing transition,
// post the job, and translate the job's terminal status onto the
// proposal. Every successful step leaves an entity-history row.
func (o *Orchestrator) Execute(ctx context.Context, proposalID, actorUserID int64) (*proposal.Proposal, *executor.JobResult, error) {
	p, err := o.proposals.Get(ctx, proposalID)
	if err != nil {
		return nil, nil, err
	}
	if err := o.proposals.ClaimExecution(ctx, p.ID, actorUserID, nowUTC()); err != nil {
		return nil, nil, err
	}

	log := o.log.WithValues("proposal_id", p.ID, "cluster_id", p.ClusterID)

	req, err := o.buildRequest(ctx, p, executor.ModeApply, actorUserID,
		fmt.Sprintf("exec-%d-%s", p.ID, correlationSuffix()))
	if err != nil {
		if finishErr := o.proposals.FinishExecution(ctx, p.ID, proposal.StatusFailed, nil); finishErr != nil {
			log.Error(finishErr, "failed to record failed execution")
		}
		return nil, nil, err
	}

	result, err := o.client.CreateJob(ctx, req)
	if err != nil {
		if finishErr := o.proposals.FinishExecution(ctx, p.ID, proposal.StatusFailed, nil); finishErr != nil {
			log.Error(finishErr, "failed to record failed execution")
		}
		return nil, nil, err
	}

	finalStatus := proposal.StatusFailed
	switch result.Job.Status {
	case executor.JobStatusCompleted:
		finalStatus = proposal.StatusExecuted
	case executor.JobStatusPartialFailure:
		finalStatus = proposal.StatusPartiallyExecuted
	}
	if err := o.proposals.FinishExecution(ctx, p.ID, finalStatus, &result.Job.ID); err != nil {
		return nil, nil, err
	}
	log.Info("proposal execution finished", "job_id", result.Job.ID, "status", finalStatus)

	o.emitHistory(ctx, log, p, actorUserID, req, result)

	updated, err := o.proposals.Get(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, result, nil
}

// buildRequest assembles the executor payload: operations from the
// proposal's rows (or the legacy single-op synthesis) plus the cluster's
// connection block with its password still as ciphertext.
func (o *Orchestrator) buildRequest(ctx context.Context, p *proposal.Proposal, mode string, actorUserID int64, correlationID string) (executor.CreateJobRequest, error) {
	cluster, err := o.clusters.Get(ctx, p.ClusterID)
	if err != nil {
		return executor.CreateJobRequest{}, err
	}

	var specs []executor.OperationSpec
	if p.Type == proposal.TypeMultiOperation {
		rows, err := o.proposals.ListOperations(ctx, p.ID)
		if err != nil {
			return executor.CreateJobRequest{}, err
		}
		if len(rows) == 0 {
			return executor.CreateJobRequest{}, apperrors.NewValidationError("proposal has no operations")
		}
		specs = make([]executor.OperationSpec, len(rows))
		for i, row := range rows {
			var params sqltemplate.Params
			if err := json.Unmarshal(row.Params, &params); err != nil {
				return executor.CreateJobRequest{}, apperrors.Wrapf(err, apperrors.ErrorTypeInternal, "unreadable params on operation %d", row.OrderIndex)
			}
			specs[i] = executor.OperationSpec{
				OrderIndex:    row.OrderIndex,
				OperationType: row.OperationType,
				Params:        params,
			}
		}
	} else {
		opType, params := proposal.LegacyOperation(p.Type,
			deref(p.DBName), deref(p.TableName), deref(p.TargetType), deref(p.TargetName))
		specs = []executor.OperationSpec{{OrderIndex: 0, OperationType: opType, Params: params}}
	}

	return executor.CreateJobRequest{
		ProposalID:    p.ID,
		ClusterID:     p.ClusterID,
		ActorUserID:   actorUserID,
		CorrelationID: correlationID,
		Mode:          mode,
		ClusterConfig: executor.ClusterConfig{
			Host:              cluster.Host,
			Port:              cluster.Port,
			Protocol:          cluster.Protocol,
			Username:          cluster.Username,
			PasswordEncrypted: cluster.PasswordCiphertext,
		},
		Operations: specs,
	}, nil
}

// emitHistory writes one entity-history row per successful step. The
// audit trail is best-effort: a write failure is logged, never fatal to
// the execution result.
func (o *Orchestrator) emitHistory(ctx context.Context, log logr.Logger, p *proposal.Proposal, actorUserID int64, req executor.CreateJobRequest, result *executor.JobResult) {
	specsByIndex := make(map[int]executor.OperationSpec, len(req.Operations))
	for _, spec := range req.Operations {
		specsByIndex[spec.OrderIndex] = spec
	}

	for _, step := range result.Steps {
		if step.Status != executor.StepStatusSuccess {
			continue
		}
		spec, ok := specsByIndex[step.StepIndex]
		if !ok {
			continue
		}
		entityType, entityName, ok := entityhistory.Extract(spec.OperationType, spec.Params)
		if !ok {
			continue
		}

		details, _ := json.Marshal(map[string]string{
			"sql_statement": executor.RedactPassword(step.SQLStatement),
		})
		detailsStr := string(details)

		row := &entityhistory.Row{
			ClusterID:   p.ClusterID,
			EntityType:  entityType,
			EntityName:  entityName,
			Action:      spec.OperationType,
			Details:     &detailsStr,
			ProposalID:  &p.ID,
			JobID:       &result.Job.ID,
			ActorUserID: &actorUserID,
		}
		if err := o.history.Insert(ctx, row); err != nil {
			log.Error(err, "failed to record entity history", "entity_type", entityType, "entity_name", entityName)
		}
	}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func correlationSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
