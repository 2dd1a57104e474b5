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

package entityhistory

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

var _ = Describe("Extract", func() {
	DescribeTable("maps operations to a stable audit identity",
		func(opType string, params sqltemplate.Params, wantType, wantName string) {
			entityType, entityName, ok := Extract(opType, params)
			Expect(ok).To(BeTrue())
			Expect(entityType).To(Equal(wantType))
			Expect(entityName).To(Equal(wantName))
		},
		Entry("create_user", "create_user",
			sqltemplate.Params{"username": "alice", "password": "pw"}, "user", "alice"),
		Entry("drop_role", "drop_role",
			sqltemplate.Params{"role_name": "analyst"}, "role", "analyst"),
		Entry("grant_role", "grant_role",
			sqltemplate.Params{"role_name": "analyst", "target_name": "alice"},
			"role_assignment", "analyst -> alice"),
		Entry("grant_privilege with table scope", "grant_privilege",
			sqltemplate.Params{"privilege": "SELECT", "database": "analytics", "table": "events", "target_name": "readonly_user"},
			"privilege", "SELECT on analytics.events"),
		Entry("revoke_privilege with database scope", "revoke_privilege",
			sqltemplate.Params{"privilege": "INSERT", "database": "staging", "target_name": "loader"},
			"privilege", "INSERT on staging.*"),
		Entry("grant_privilege global scope", "grant_privilege",
			sqltemplate.Params{"privilege": "SELECT", "target_name": "auditor"},
			"privilege", "SELECT on *.*"),
		Entry("create_settings_profile", "create_settings_profile",
			sqltemplate.Params{"name": "readonly"}, "settings_profile", "readonly"),
		Entry("set_default_roles attributes to the user", "set_default_roles",
			sqltemplate.Params{"username": "alice", "roles": []any{"analyst"}},
			"user", "alice"),
		Entry("assign_settings_profile", "assign_settings_profile",
			sqltemplate.Params{"profile_name": "readonly", "target_name": "alice"},
			"settings_profile", "readonly -> alice"),
		Entry("assign_quota", "assign_quota",
			sqltemplate.Params{"quota_name": "daily", "target_name": "alice"},
			"quota", "daily -> alice"),
		Entry("drop_row_policy", "drop_row_policy",
			sqltemplate.Params{"name": "tenant_filter"}, "row_policy", "tenant_filter"),
	)

	It("produces no row for unknown operation types", func() {
		_, _, ok := Extract("teleport_user", sqltemplate.Params{})
		Expect(ok).To(BeFalse())
	})
})
