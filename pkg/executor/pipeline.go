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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-logr/logr"

	"github.com/jordigilh/govrbac/internal/crypto"
	"github.com/jordigilh/govrbac/pkg/chclient"
	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

const (
	defaultStepTimeout = 30 * time.Second
	maxResultLen       = 500

	skippedAfterTemplateError = "Skipped due to earlier error"
	skippedAfterFailure       = "Skipped due to earlier failure"
	dryRunPassed              = "Validation passed"
)

// Pipeline admits and runs jobs. Steps are templated and executed one at
// a time in order_index order; all cluster I/O happens here.
type Pipeline struct {
	store       *Store
	client      *chclient.Client
	secrets     *crypto.SecretBox
	log         logr.Logger
	stepTimeout time.Duration
}

func NewPipeline(store *Store, client *chclient.Client, secrets *crypto.SecretBox, log logr.Logger) *Pipeline {
	return &Pipeline{
		store:       store,
		client:      client,
		secrets:     secrets,
		log:         log,
		stepTimeout: defaultStepTimeout,
	}
}

// CreateJob admits req and, unless a job already exists under its
// correlation_id, runs its steps to a terminal status. Re-submitting an
// existing correlation_id returns the admitted job unchanged, with no
// re-execution and no cluster I/O.
func (p *Pipeline) CreateJob(ctx context.Context, req CreateJobRequest) (*JobResult, error) {
	log := p.log.WithValues("correlation_id", req.CorrelationID, "proposal_id", req.ProposalID, "mode", req.Mode)

	existing, err := p.store.FindByCorrelationID(ctx, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("duplicate job submission, returning admitted job", "job_id", existing.ID)
		return p.loadResult(ctx, existing)
	}

	job := &Job{
		ProposalID:    req.ProposalID,
		ClusterID:     req.ClusterID,
		ActorUserID:   req.ActorUserID,
		CorrelationID: req.CorrelationID,
		Mode:          req.Mode,
		Status:        JobStatusRunning,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		// Lost an admission race: the unique index on correlation_id
		// serialized us behind another submission.
		if admitted, findErr := p.store.FindByCorrelationID(ctx, req.CorrelationID); findErr == nil && admitted != nil {
			log.Info("lost admission race, returning admitted job", "job_id", admitted.ID)
			return p.loadResult(ctx, admitted)
		}
		return nil, err
	}
	log = log.WithValues("job_id", job.ID)

	ops := make([]OperationSpec, len(req.Operations))
	copy(ops, req.Operations)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].OrderIndex < ops[j].OrderIndex })

	return p.run(ctx, log, job, ops, req.ClusterConfig)
}

// GetJob returns a job with its steps.
func (p *Pipeline) GetJob(ctx context.Context, id int64) (*JobResult, error) {
	job, err := p.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.loadResult(ctx, job)
}

// ListJobs returns jobs, with steps, optionally filtered by proposal.
func (p *Pipeline) ListJobs(ctx context.Context, proposalID *int64) ([]*JobResult, error) {
	jobs, err := p.store.ListJobs(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	results := make([]*JobResult, 0, len(jobs))
	for _, job := range jobs {
		res, err := p.loadResult(ctx, job)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) loadResult(ctx context.Context, job *Job) (*JobResult, error) {
	steps, err := p.store.ListSteps(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return &JobResult{Job: *job, Steps: steps}, nil
}

// run drives the per-step loop: template, then (in apply mode) execute,
// strictly in order. The first template failure or cluster failure stops
// execution and marks every later step skipped.
func (p *Pipeline) run(ctx context.Context, log logr.Logger, job *Job, ops []OperationSpec, cc ClusterConfig) (*JobResult, error) {
	var clusterCfg chclient.Config
	decryptFailed := false
	if job.Mode == ModeApply {
		password, err := p.secrets.Decrypt(cc.PasswordEncrypted)
		if err != nil {
			log.Error(err, "failed to decrypt cluster credentials")
			decryptFailed = true
		}
		clusterCfg = chclient.Config{
			Protocol: cc.Protocol,
			Host:     cc.Host,
			Port:     cc.Port,
			Username: cc.Username,
			Password: password,
		}
	}

	steps := make([]Step, 0, len(ops))
	templateErrAt := -1
	var templateErr error
	var failedSteps []int
	hasSuccess := false

	for k, op := range ops {
		step := Step{JobID: job.ID, StepIndex: k, OperationType: op.OperationType}

		switch {
		case templateErrAt >= 0:
			msg := skippedAfterTemplateError
			step.SQLStatement = previewOrPlaceholder(op)
			step.Status = StepStatusSkipped
			step.ResultMessage = &msg

		case len(failedSteps) > 0 || decryptFailed:
			msg := skippedAfterFailure
			step.SQLStatement = previewOrPlaceholder(op)
			step.Status = StepStatusSkipped
			step.ResultMessage = &msg

		default:
			result, err := sqltemplate.BuildExecute(op.OperationType, op.Params)
			if err != nil {
				msg := err.Error()
				step.SQLStatement = previewOrPlaceholder(op)
				step.Status = StepStatusError
				step.ResultMessage = &msg
				templateErrAt = k
				templateErr = err
				break
			}

			step.SQLStatement = result.SQL
			step.CompensationSQL = optional(result.Compensation)

			if job.Mode == ModeDryRun {
				msg := dryRunPassed
				step.Status = StepStatusDryRunOK
				step.ResultMessage = &msg
				break
			}

			log.Info("executing step", "step_index", k, "sql", RedactPassword(step.SQLStatement))

			stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
			body, execErr := p.client.Execute(stepCtx, clusterCfg, step.SQLStatement)
			cancel()

			now := time.Now().UTC()
			step.ExecutedAt = &now
			if execErr != nil {
				msg := truncate(statementFailureMessage(execErr), maxResultLen)
				step.Status = StepStatusError
				step.ResultMessage = &msg
				failedSteps = append(failedSteps, k)
				log.Info("step failed", "step_index", k, "error", msg)
			} else {
				msg := body
				if msg == "" {
					msg = "OK"
				}
				step.Status = StepStatusSuccess
				step.ResultMessage = &msg
				hasSuccess = true
			}
		}

		steps = append(steps, step)
	}

	if err := p.store.InsertSteps(ctx, steps); err != nil {
		return nil, err
	}

	status := JobStatusCompleted
	var jobErr *string
	switch {
	case templateErrAt >= 0:
		// Template failures block the job outright, regardless of any
		// step that already succeeded.
		status = JobStatusFailed
		msg := errors.Wrapf(templateErr, "Template error at step %d", templateErrAt).Error()
		jobErr = &msg

	case decryptFailed:
		status = JobStatusFailed
		msg := "failed to decrypt cluster credentials"
		jobErr = &msg

	case len(failedSteps) > 0:
		status = JobStatusFailed
		if hasSuccess {
			status = JobStatusPartialFailure
		}
		msg := fmt.Sprintf("failed at step(s): %s", joinInts(failedSteps))
		jobErr = &msg
	}

	if err := p.finish(ctx, job, status, jobErr); err != nil {
		return nil, err
	}
	log.Info("job finished", "status", status, "steps", len(steps))
	return &JobResult{Job: *job, Steps: steps}, nil
}

func (p *Pipeline) finish(ctx context.Context, job *Job, status string, jobErr *string) error {
	now := time.Now().UTC()
	if err := p.store.FinishJob(ctx, job.ID, status, jobErr, now); err != nil {
		return err
	}
	job.Status = status
	job.Error = jobErr
	job.CompletedAt = &now
	return nil
}

// previewOrPlaceholder renders display-only SQL for a step that will not
// execute. The preview builder's output is used when it produced real
// SQL; its inline error comments are replaced by a placeholder.
func previewOrPlaceholder(op OperationSpec) string {
	res := sqltemplate.BuildPreview(op.OperationType, op.Params)
	if strings.HasPrefix(res.SQL, "--") {
		return fmt.Sprintf("-- TEMPLATE ERROR for %s", op.OperationType)
	}
	return res.SQL
}

// statementFailureMessage prefers the cluster's own response body over
// transport-level error prose.
func statementFailureMessage(err error) string {
	var stmtErr *chclient.StatementError
	if errors.As(err, &stmtErr) {
		return stmtErr.Body
	}
	return err.Error()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ", ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
