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

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Repository", func() {
	var (
		ctx  context.Context
		repo *Repository
		mock sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()

		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())

		db := sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		repo = NewRepository(db)
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	Describe("CreateRun", func() {
		It("inserts a pending run and returns its id", func() {
			mock.ExpectQuery(`INSERT INTO snapshot_runs`).
				WithArgs(int64(5), RunStatusPending).
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

			run, err := repo.CreateRun(ctx, 5)

			Expect(err).ToNot(HaveOccurred())
			Expect(run.ID).To(Equal(int64(1)))
			Expect(run.Status).To(Equal(RunStatusPending))
		})
	})

	Describe("MarkRunning", func() {
		It("transitions status to running", func() {
			mock.ExpectExec(`UPDATE snapshot_runs SET status = \$1, started_at = now\(\)`).
				WithArgs(RunStatusRunning, int64(1)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(repo.MarkRunning(ctx, 1)).To(Succeed())
		})
	})

	Describe("MarkCompleted", func() {
		It("transitions status to completed with the raw payload", func() {
			mock.ExpectExec(`UPDATE snapshot_runs SET status = \$1, completed_at = now\(\), raw_payload = \$2`).
				WithArgs(RunStatusCompleted, `{"users":[]}`, int64(1)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(repo.MarkCompleted(ctx, 1, `{"users":[]}`)).To(Succeed())
		})
	})

	Describe("MarkFailed", func() {
		It("transitions status to failed with the error text", func() {
			mock.ExpectExec(`UPDATE snapshot_runs SET status = \$1, completed_at = now\(\), error = \$2`).
				WithArgs(RunStatusFailed, "boom", int64(1)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(repo.MarkFailed(ctx, 1, "boom")).To(Succeed())
		})
	})

	Describe("GetRun", func() {
		It("returns a not-found error when missing", func() {
			mock.ExpectQuery(`SELECT id, cluster_id, status`).
				WithArgs(int64(99)).
				WillReturnError(sql.ErrNoRows)

			_, err := repo.GetRun(ctx, 99)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not found"))
		})
	})

	Describe("StoreNormalized", func() {
		It("is a no-op for entirely empty entity sets", func() {
			Expect(repo.StoreNormalized(ctx, 1, nil, nil, nil, nil)).To(Succeed())
		})

		It("inserts users when present", func() {
			mock.ExpectExec(`INSERT INTO snapshot_users`).
				WillReturnResult(sqlmock.NewResult(1, 1))

			err := repo.StoreNormalized(ctx, 1, []User{{Name: "default", HostIP: "[]", HostNames: "[]", DefaultRolesList: "[]", GranteesList: "[]"}}, nil, nil, nil)

			Expect(err).ToNot(HaveOccurred())
		})
	})
})
