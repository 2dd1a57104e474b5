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
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/govrbac/internal/log"
	"github.com/jordigilh/govrbac/pkg/chclient"
)

func configFor(srv *httptest.Server) chclient.Config {
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	Expect(err).ToNot(HaveOccurred())
	port, err := strconv.Atoi(portStr)
	Expect(err).ToNot(HaveOccurred())
	return chclient.Config{Protocol: "http", Host: host, Port: port, Username: "default", Password: "pw"}
}

var _ = Describe("Collector", func() {
	It("fetches all seven system tables and keys them by table name", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query().Get("query")
			switch {
			case strings.Contains(query, "system.users"):
				w.Write([]byte(`{"name":"default"}` + "\n"))
			default:
				w.Write(nil)
			}
		}))
		defer srv.Close()

		c := NewCollector(chclient.New(&http.Client{}), log.NewNop())
		raw := c.CollectRaw(context.Background(), configFor(srv))

		Expect(raw).To(HaveLen(7))
		Expect(raw["users"]).To(HaveLen(1))
		Expect(raw["roles"]).To(BeEmpty())
	})

	It("substitutes an empty list for a query that fails, without aborting the others", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query().Get("query")
			if strings.Contains(query, "system.quotas") {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte("Not enough privileges"))
				return
			}
			w.Write([]byte(`{"name":"x"}` + "\n"))
		}))
		defer srv.Close()

		c := NewCollector(chclient.New(&http.Client{}), log.NewNop())
		raw := c.CollectRaw(context.Background(), configFor(srv))

		Expect(raw).To(HaveLen(7))
		Expect(raw["quotas"]).To(BeEmpty())
		Expect(raw["users"]).To(HaveLen(1))
	})
})

var _ = Describe("Normalize", func() {
	It("maps raw rows into typed snapshot entities, scoped to the snapshot id", func() {
		raw := map[string][]map[string]any{
			"users": {{
				"name":                "default",
				"storage":             "local_directory",
				"default_roles_all":   true,
				"default_roles_list":  []any{},
				"grantees_any":        false,
				"grantees_list":       []any{"admin"},
			}},
			"roles": {{"name": "admin", "storage": "local_directory"}},
			"role_grants": {{
				"user_name":                "default",
				"granted_role_name":        "admin",
				"granted_role_is_default":  true,
				"with_admin_option":        false,
			}},
			"grants": {{
				"role_name":         "admin",
				"access_type":       "SELECT",
				"database":          "analytics",
				"is_partial_revoke": false,
				"grant_option":      true,
			}},
		}

		users, roles, roleGrants, privileges := Normalize(42, raw)

		Expect(users).To(HaveLen(1))
		Expect(users[0].SnapshotID).To(Equal(int64(42)))
		Expect(users[0].Name).To(Equal("default"))
		Expect(users[0].DefaultRolesAll).To(BeTrue())
		Expect(users[0].HostIP).To(Equal("[]"))
		Expect(users[0].GranteesList).To(Equal(`["admin"]`))

		Expect(roles).To(HaveLen(1))
		Expect(roles[0].Name).To(Equal("admin"))

		Expect(roleGrants).To(HaveLen(1))
		Expect(roleGrants[0].GrantedRoleName).To(Equal("admin"))
		Expect(roleGrants[0].IsDefault).To(BeTrue())
		Expect(*roleGrants[0].UserName).To(Equal("default"))
		Expect(roleGrants[0].RoleName).To(BeNil())

		Expect(privileges).To(HaveLen(1))
		Expect(privileges[0].AccessType).To(Equal("SELECT"))
		Expect(*privileges[0].Database).To(Equal("analytics"))
		Expect(privileges[0].GrantOption).To(BeTrue())
	})

	It("returns nil slices for entirely empty raw input", func() {
		users, roles, roleGrants, privileges := Normalize(1, map[string][]map[string]any{})

		Expect(users).To(BeEmpty())
		Expect(roles).To(BeEmpty())
		Expect(roleGrants).To(BeEmpty())
		Expect(privileges).To(BeEmpty())
	})
})
