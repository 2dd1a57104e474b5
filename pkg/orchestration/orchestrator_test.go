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
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
	"github.com/jordigilh/govrbac/internal/log"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
	"github.com/jordigilh/govrbac/pkg/entityhistory"
	"github.com/jordigilh/govrbac/pkg/executor"
	"github.com/jordigilh/govrbac/pkg/proposal"
)

// fakeSubmitter records the submitted request and plays back a canned
// result or error.
type fakeSubmitter struct {
	req    executor.CreateJobRequest
	result *executor.JobResult
	err    error
}

func (f *fakeSubmitter) CreateJob(_ context.Context, req executor.CreateJobRequest) (*executor.JobResult, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx   context.Context
		orch  *Orchestrator
		mock  sqlmock.Sqlmock
		fake  *fakeSubmitter
	)

	proposalRow := func(id int64, status, proposalType string) *sqlmock.Rows {
		now := time.Now()
		rows := sqlmock.NewRows([]string{
			"id", "cluster_id", "created_by", "status", "type", "title",
			"description", "reason", "is_elevated", "sql_preview",
			"compensation_sql", "job_id", "executed_by", "executed_at",
			"db_name", "table_name", "target_type", "target_name",
			"created_at", "updated_at",
		})
		if proposalType == proposal.TypeGrantSelect {
			rows.AddRow(id, int64(1), int64(2), status, proposalType, nil,
				nil, nil, false, nil, nil, nil, nil, nil,
				"analytics", "events", "user", "readonly_user", now, now)
		} else {
			rows.AddRow(id, int64(1), int64(2), status, proposalType, nil,
				nil, nil, false, nil, nil, nil, nil, nil,
				nil, nil, nil, nil, now, now)
		}
		return rows
	}

	clusterRow := func() *sqlmock.Rows {
		now := time.Now()
		return sqlmock.NewRows([]string{
			"id", "name", "host", "port", "protocol", "username",
			"password_ciphertext", "default_database", "is_deleted",
			"health_status", "last_tested_at", "latency_ms", "server_version",
			"detected_current_user", "error_code", "error_message",
			"created_by", "created_at", "updated_at",
		}).AddRow(int64(1), "prod", "ch.internal", 8443, "https", "default",
			"cipher", nil, false, "healthy", nil, nil, nil, nil, nil, nil,
			int64(1), now, now)
	}

	expectClaim := func(id int64, status string) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT status FROM proposals WHERE id = \$1 FOR UPDATE`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(status))
		if status == proposal.StatusApproved {
			mock.ExpectExec(`UPDATE proposals SET status`).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}

	BeforeEach(func() {
		ctx = context.Background()

		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())
		mock = mockSQL

		db := sqlx.NewDb(mockDB, "sqlmock")
		fake = &fakeSubmitter{}
		orch = NewOrchestrator(
			proposal.NewRepository(db),
			clusterregistry.NewRepository(db),
			entityhistory.NewRepository(db),
			fake,
			log.NewNop(),
		)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Execute", func() {
		It("applies a legacy proposal and maps completed to executed", func() {
			jobID := int64(42)
			fake.result = &executor.JobResult{
				Job: executor.Job{ID: jobID, Status: executor.JobStatusCompleted},
				Steps: []executor.Step{{
					StepIndex:    0,
					SQLStatement: "GRANT SELECT ON `analytics`.`events` TO `readonly_user`",
					Status:       executor.StepStatusSuccess,
				}},
			}

			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WithArgs(int64(9)).
				WillReturnRows(proposalRow(9, proposal.StatusApproved, proposal.TypeGrantSelect))
			expectClaim(9, proposal.StatusApproved)
			mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
				WithArgs(int64(1)).
				WillReturnRows(clusterRow())
			mock.ExpectExec(`UPDATE proposals SET status = \$1, job_id = \$2`).
				WithArgs(proposal.StatusExecuted, jobID, int64(9), proposal.StatusExecuting).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(`INSERT INTO entity_history`).
				WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WithArgs(int64(9)).
				WillReturnRows(proposalRow(9, proposal.StatusExecuted, proposal.TypeGrantSelect))

			updated, result, err := orch.Execute(ctx, 9, 7)
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(proposal.StatusExecuted))
			Expect(result.Job.ID).To(Equal(jobID))

			Expect(fake.req.Mode).To(Equal(executor.ModeApply))
			Expect(fake.req.CorrelationID).To(HavePrefix("exec-9-"))
			Expect(fake.req.ClusterConfig.PasswordEncrypted).To(Equal("cipher"))
			Expect(fake.req.Operations).To(HaveLen(1))
			Expect(fake.req.Operations[0].OperationType).To(Equal("grant_privilege"))
			Expect(fake.req.Operations[0].Params["privilege"]).To(Equal("SELECT"))
		})

		It("maps partial_failure to partially_executed", func() {
			fake.result = &executor.JobResult{
				Job: executor.Job{ID: 43, Status: executor.JobStatusPartialFailure},
			}

			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WithArgs(int64(9)).
				WillReturnRows(proposalRow(9, proposal.StatusApproved, proposal.TypeGrantSelect))
			expectClaim(9, proposal.StatusApproved)
			mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
				WillReturnRows(clusterRow())
			mock.ExpectExec(`UPDATE proposals SET status = \$1, job_id = \$2`).
				WithArgs(proposal.StatusPartiallyExecuted, int64(43), int64(9), proposal.StatusExecuting).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WillReturnRows(proposalRow(9, proposal.StatusPartiallyExecuted, proposal.TypeGrantSelect))

			updated, _, err := orch.Execute(ctx, 9, 7)
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(proposal.StatusPartiallyExecuted))
		})

		It("fails the proposal when the executor RPC fails", func() {
			fake.err = apperrors.NewUpstreamError(nil, "executor job submission failed")

			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WithArgs(int64(9)).
				WillReturnRows(proposalRow(9, proposal.StatusApproved, proposal.TypeGrantSelect))
			expectClaim(9, proposal.StatusApproved)
			mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
				WillReturnRows(clusterRow())
			mock.ExpectExec(`UPDATE proposals SET status = \$1, job_id = \$2`).
				WithArgs(proposal.StatusFailed, nil, int64(9), proposal.StatusExecuting).
				WillReturnResult(sqlmock.NewResult(0, 1))

			_, _, err := orch.Execute(ctx, 9, 7)
			Expect(err).To(HaveOccurred())
			Expect(apperrors.StatusCodeFor(err)).To(Equal(502))
		})

		It("refuses to execute a proposal that is not approved", func() {
			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WithArgs(int64(9)).
				WillReturnRows(proposalRow(9, proposal.StatusSubmitted, proposal.TypeGrantSelect))
			expectClaim(9, proposal.StatusSubmitted)

			_, _, err := orch.Execute(ctx, 9, 7)
			Expect(err).To(HaveOccurred())
			Expect(apperrors.StatusCodeFor(err)).To(Equal(400))
		})
	})

	Describe("DryRun", func() {
		It("posts a dry_run job without touching proposal status", func() {
			fake.result = &executor.JobResult{
				Job: executor.Job{ID: 50, Status: executor.JobStatusCompleted},
			}

			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WithArgs(int64(9)).
				WillReturnRows(proposalRow(9, proposal.StatusSubmitted, proposal.TypeGrantSelect))
			mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
				WillReturnRows(clusterRow())

			result, err := orch.DryRun(ctx, 9, 7)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Job.ID).To(Equal(int64(50)))
			Expect(fake.req.Mode).To(Equal(executor.ModeDryRun))
			Expect(fake.req.CorrelationID).To(HavePrefix("dryrun-9-"))
		})

		It("refuses a dry-run on a draft proposal", func() {
			mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
				WithArgs(int64(9)).
				WillReturnRows(proposalRow(9, proposal.StatusDraft, proposal.TypeGrantSelect))

			_, err := orch.DryRun(ctx, 9, 7)
			Expect(apperrors.StatusCodeFor(err)).To(Equal(400))
		})
	})
})
