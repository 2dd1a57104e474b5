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

package graphresolver

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/govrbac/pkg/rbaccollector"
)

func strPtr(s string) *string { return &s }

func userGrant(user, role string, isDefault bool) rbaccollector.RoleGrant {
	return rbaccollector.RoleGrant{UserName: strPtr(user), GrantedRoleName: role, IsDefault: isDefault}
}

func roleGrant(role, granted string) rbaccollector.RoleGrant {
	return rbaccollector.RoleGrant{RoleName: strPtr(role), GrantedRoleName: granted}
}

func userPriv(user, access string, db, table *string) rbaccollector.Privilege {
	return rbaccollector.Privilege{UserName: strPtr(user), AccessType: access, Database: db, TableName: table}
}

func rolePriv(role, access string, db, table *string) rbaccollector.Privilege {
	return rbaccollector.Privilege{RoleName: strPtr(role), AccessType: access, Database: db, TableName: table}
}

var _ = Describe("ResolveRoles", func() {
	It("resolves direct and inherited roles with full derivation paths", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Roles: []rbaccollector.Role{{Name: "analyst"}, {Name: "reader"}},
			RoleGrants: []rbaccollector.RoleGrant{
				userGrant("alice", "analyst", true),
				roleGrant("analyst", "reader"),
			},
		})

		roles := g.ResolveRoles("alice")
		Expect(roles).To(HaveLen(2))

		Expect(roles[0].RoleName).To(Equal("analyst"))
		Expect(roles[0].IsDirect).To(BeTrue())
		Expect(roles[0].IsDefault).To(BeTrue())
		Expect(roles[0].Path).To(Equal([]string{"alice", "analyst"}))

		Expect(roles[1].RoleName).To(Equal("reader"))
		Expect(roles[1].IsDirect).To(BeFalse())
		Expect(roles[1].Path).To(Equal([]string{"alice", "analyst", "reader"}))
	})

	It("resolves a role seed through the role adjacency", func() {
		g := Build(&rbaccollector.Snapshot{
			Roles: []rbaccollector.Role{{Name: "analyst"}, {Name: "reader"}},
			RoleGrants: []rbaccollector.RoleGrant{
				roleGrant("analyst", "reader"),
			},
		})

		roles := g.ResolveRoles("analyst")
		Expect(roles).To(HaveLen(1))
		Expect(roles[0].RoleName).To(Equal("reader"))
		Expect(roles[0].Path).To(Equal([]string{"analyst", "reader"}))
	})

	It("visits each role exactly once when inheritance cycles", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Roles: []rbaccollector.Role{{Name: "a"}, {Name: "b"}},
			RoleGrants: []rbaccollector.RoleGrant{
				userGrant("alice", "a", false),
				roleGrant("a", "b"),
				roleGrant("b", "a"),
			},
		})

		roles := g.ResolveRoles("alice")
		Expect(roles).To(HaveLen(2))

		names := []string{roles[0].RoleName, roles[1].RoleName}
		Expect(names).To(ConsistOf("a", "b"))
	})

	It("does not alias paths across sibling branches", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Roles: []rbaccollector.Role{{Name: "a"}, {Name: "b"}, {Name: "c"}},
			RoleGrants: []rbaccollector.RoleGrant{
				userGrant("alice", "a", false),
				userGrant("alice", "b", false),
				roleGrant("b", "c"),
			},
		})

		roles := g.ResolveRoles("alice")
		Expect(roles).To(HaveLen(3))
		Expect(roles[0].Path).To(Equal([]string{"alice", "a"}))
		Expect(roles[1].Path).To(Equal([]string{"alice", "b"}))
		Expect(roles[2].Path).To(Equal([]string{"alice", "b", "c"}))
	})
})

var _ = Describe("EffectivePrivileges", func() {
	It("tags direct grants and role grants with source attribution", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Roles: []rbaccollector.Role{{Name: "analyst"}},
			RoleGrants: []rbaccollector.RoleGrant{
				userGrant("alice", "analyst", false),
			},
			Privileges: []rbaccollector.Privilege{
				userPriv("alice", "INSERT", strPtr("staging"), nil),
				rolePriv("analyst", "SELECT", strPtr("analytics"), nil),
			},
		})

		privs := g.EffectivePrivileges("alice")
		Expect(privs).To(HaveLen(2))

		Expect(privs[0].AccessType).To(Equal("INSERT"))
		Expect(privs[0].Source).To(Equal(SourceDirect))
		Expect(privs[0].SourceName).To(Equal("alice"))
		Expect(privs[0].Path).To(Equal([]string{"alice"}))

		Expect(privs[1].AccessType).To(Equal("SELECT"))
		Expect(privs[1].Source).To(Equal(SourceRole))
		Expect(privs[1].SourceName).To(Equal("analyst"))
		Expect(privs[1].Path).To(Equal([]string{"alice", "analyst"}))
	})

	It("suppresses a grant when a partial revoke matches its exact scope", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Privileges: []rbaccollector.Privilege{
				userPriv("alice", "SELECT", strPtr("db1"), strPtr("events")),
				{UserName: strPtr("alice"), AccessType: "SELECT", Database: strPtr("db1"), TableName: strPtr("events"), IsPartialRevoke: true},
			},
		})

		Expect(g.EffectivePrivileges("alice")).To(BeEmpty())
	})

	It("suppresses a narrower grant when the revoke is a wildcard", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Privileges: []rbaccollector.Privilege{
				userPriv("alice", "SELECT", strPtr("db1"), strPtr("events")),
				{UserName: strPtr("alice"), AccessType: "SELECT", Database: strPtr("db1"), IsPartialRevoke: true},
			},
		})

		Expect(g.EffectivePrivileges("alice")).To(BeEmpty())
	})

	It("keeps a broad grant when the revoke is narrower than the grant", func() {
		// A revoke on db1.events does not cover a grant on db1.* — the
		// grant's table is a wildcard the revoke cannot match.
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Roles: []rbaccollector.Role{{Name: "r"}},
			RoleGrants: []rbaccollector.RoleGrant{
				userGrant("alice", "r", false),
			},
			Privileges: []rbaccollector.Privilege{
				rolePriv("r", "SELECT", strPtr("db1"), nil),
				{UserName: strPtr("alice"), AccessType: "SELECT", Database: strPtr("db1"), TableName: strPtr("events"), IsPartialRevoke: true},
			},
		})

		privs := g.EffectivePrivileges("alice")
		Expect(privs).To(HaveLen(1))
		Expect(*privs[0].Database).To(Equal("db1"))
		Expect(privs[0].Table).To(BeNil())
	})

	It("ignores revokes with a different access type", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Privileges: []rbaccollector.Privilege{
				userPriv("alice", "SELECT", strPtr("db1"), nil),
				{UserName: strPtr("alice"), AccessType: "INSERT", Database: strPtr("db1"), IsPartialRevoke: true},
			},
		})

		Expect(g.EffectivePrivileges("alice")).To(HaveLen(1))
	})
})

var _ = Describe("RoleMembers", func() {
	It("returns direct user and role members only", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}, {Name: "bob"}},
			Roles: []rbaccollector.Role{{Name: "reader"}, {Name: "analyst"}},
			RoleGrants: []rbaccollector.RoleGrant{
				userGrant("alice", "reader", false),
				roleGrant("analyst", "reader"),
				userGrant("bob", "analyst", false),
			},
		})

		members := g.RoleMembers("reader")
		Expect(members).To(Equal([]Member{
			{Name: "alice", Type: "user"},
			{Name: "analyst", Type: "role"},
		}))
	})
})

var _ = Describe("ObjectAccessFor", func() {
	It("aggregates per-user access with sorted deduped access types", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}, {Name: "bob"}},
			Roles: []rbaccollector.Role{{Name: "writer"}},
			RoleGrants: []rbaccollector.RoleGrant{
				userGrant("alice", "writer", false),
			},
			Privileges: []rbaccollector.Privilege{
				userPriv("alice", "SELECT", strPtr("analytics"), nil),
				rolePriv("writer", "INSERT", strPtr("analytics"), strPtr("events")),
				userPriv("bob", "SELECT", strPtr("other"), nil),
			},
		})

		access := g.ObjectAccessFor("analytics", "events")
		Expect(access).To(HaveLen(1))
		Expect(access[0].Name).To(Equal("alice"))
		Expect(access[0].EntityType).To(Equal("user"))
		Expect(access[0].AccessTypes).To(Equal([]string{"INSERT", "SELECT"}))
		Expect(access[0].Source).To(Equal("alice, writer"))
	})

	It("matches globally scoped privileges against any object", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "admin"}},
			Privileges: []rbaccollector.Privilege{
				userPriv("admin", "SELECT", nil, nil),
			},
		})

		access := g.ObjectAccessFor("analytics", "events")
		Expect(access).To(HaveLen(1))
		Expect(access[0].Name).To(Equal("admin"))
	})

	It("omits users with no matching privileges", func() {
		g := Build(&rbaccollector.Snapshot{
			Users: []rbaccollector.User{{Name: "alice"}},
			Privileges: []rbaccollector.Privilege{
				userPriv("alice", "SELECT", strPtr("other"), nil),
			},
		})

		Expect(g.ObjectAccessFor("analytics", "")).To(BeEmpty())
	})
})
