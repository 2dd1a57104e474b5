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
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
	"github.com/jordigilh/govrbac/internal/log"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

var _ = Describe("Engine", func() {
	var (
		ctx    context.Context
		engine *Engine
		mock   sqlmock.Sqlmock
	)

	clusterRow := func(deleted bool) *sqlmock.Rows {
		now := time.Now()
		return sqlmock.NewRows([]string{
			"id", "name", "host", "port", "protocol", "username",
			"password_ciphertext", "default_database", "is_deleted",
			"health_status", "last_tested_at", "latency_ms", "server_version",
			"detected_current_user", "error_code", "error_message",
			"created_by", "created_at", "updated_at",
		}).AddRow(int64(1), "prod", "ch.internal", 8443, "https", "default",
			"cipher", nil, deleted, "healthy", nil, nil, nil, nil, nil, nil,
			int64(1), now, now)
	}

	BeforeEach(func() {
		ctx = context.Background()

		mockDB, mockSQL, err := sqlmock.New()
		Expect(err).ToNot(HaveOccurred())

		db := sqlx.NewDb(mockDB, "sqlmock")
		mock = mockSQL
		engine = NewEngine(NewRepository(db), clusterregistry.NewRepository(db), log.NewNop())
	})

	AfterEach(func() {
		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})

	It("creates a multi-op proposal with masked previews and reversed compensation", func() {
		now := time.Now()
		mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(clusterRow(false))
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO proposals`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(4), now, now))
		mock.ExpectQuery(`INSERT INTO proposal_operations`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
		mock.ExpectQuery(`INSERT INTO proposal_operations`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
		mock.ExpectCommit()

		p, ops, err := engine.Create(ctx, CreateRequest{
			ClusterID: 1,
			CreatedBy: 2,
			Operations: []OperationInput{
				{OperationType: "create_user", Params: sqltemplate.Params{"username": "alice", "password": "hunter2"}},
				{OperationType: "grant_role", Params: sqltemplate.Params{"role_name": "analyst", "target_type": "user", "target_name": "alice"}},
			},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Status).To(Equal(StatusSubmitted))
		Expect(p.Type).To(Equal(TypeMultiOperation))
		Expect(ops).To(HaveLen(2))

		Expect(*p.SQLPreview).To(ContainSubstring("BY '***'"))
		Expect(*p.SQLPreview).ToNot(ContainSubstring("hunter2"))

		// Compensation runs in reverse operation order.
		Expect(*p.CompensationSQL).To(Equal(
			"REVOKE `analyst` FROM `alice`\nDROP USER IF EXISTS `alice`"))
	})

	It("rejects an empty operations list", func() {
		mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(clusterRow(false))

		_, _, err := engine.Create(ctx, CreateRequest{ClusterID: 1, CreatedBy: 2})
		Expect(err).To(HaveOccurred())
		Expect(apperrors.StatusCodeFor(err)).To(Equal(400))
	})

	It("rejects an unknown operation type", func() {
		mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(clusterRow(false))

		_, _, err := engine.Create(ctx, CreateRequest{
			ClusterID:  1,
			CreatedBy:  2,
			Operations: []OperationInput{{OperationType: "teleport_user"}},
		})
		Expect(err).To(MatchError(ContainSubstring("teleport_user")))
	})

	It("treats a soft-deleted cluster as missing", func() {
		mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(clusterRow(true))

		_, _, err := engine.Create(ctx, CreateRequest{
			ClusterID:  1,
			CreatedBy:  2,
			Operations: []OperationInput{{OperationType: "create_role", Params: sqltemplate.Params{"role_name": "r"}}},
		})
		Expect(apperrors.StatusCodeFor(err)).To(Equal(404))
	})

	It("creates a legacy proposal carrying the single-op fields", func() {
		now := time.Now()
		mock.ExpectQuery(`FROM clusters WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(clusterRow(false))
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO proposals`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(5), now, now))
		mock.ExpectCommit()

		p, err := engine.CreateLegacy(ctx, LegacyCreateRequest{
			ClusterID:  1,
			CreatedBy:  2,
			Type:       TypeGrantSelect,
			DBName:     "analytics",
			TableName:  "events",
			TargetType: "user",
			TargetName: "readonly_user",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(*p.SQLPreview).To(Equal("GRANT SELECT ON `analytics`.`events` TO `readonly_user`"))
		Expect(*p.CompensationSQL).To(Equal("REVOKE SELECT ON `analytics`.`events` FROM `readonly_user`"))
		Expect(*p.DBName).To(Equal("analytics"))
	})
})

var _ = Describe("LegacyOperation", func() {
	It("always synthesizes a SELECT privilege", func() {
		opType, params := LegacyOperation(TypeRevokeSelect, "db", "t", "user", "bob")
		Expect(opType).To(Equal("revoke_privilege"))
		Expect(params["privilege"]).To(Equal("SELECT"))
	})
})
