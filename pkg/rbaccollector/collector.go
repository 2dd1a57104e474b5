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
	"encoding/json"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/jordigilh/govrbac/pkg/chclient"
)

// systemTableQueries are the seven read-only system-table queries a
// snapshot fans out across. Every key doubles as the raw payload's
// top-level field name.
var systemTableQueries = map[string]string{
	"users":              "SELECT * FROM system.users",
	"roles":              "SELECT * FROM system.roles",
	"role_grants":        "SELECT * FROM system.role_grants",
	"grants":             "SELECT * FROM system.grants",
	"settings_profiles":  "SELECT * FROM system.settings_profiles",
	"settings_elements":  "SELECT * FROM system.settings_profile_elements",
	"quotas":             "SELECT * FROM system.quotas",
}

// Collector fetches raw RBAC state from a cluster's system tables.
type Collector struct {
	client *chclient.Client
	log    logr.Logger
}

func NewCollector(client *chclient.Client, log logr.Logger) *Collector {
	return &Collector{client: client, log: log}
}

// CollectRaw runs every system-table query concurrently, one goroutine
// each. A single query's failure does not abort the others — it is
// recorded as an empty list, matching every other query's shape, so a
// partially-unreachable system schema still yields a usable snapshot.
func (c *Collector) CollectRaw(ctx context.Context, cfg chclient.Config) map[string][]map[string]any {
	data := make(map[string][]map[string]any, len(systemTableQueries))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for key, query := range systemTableQueries {
		key, query := key, query
		g.Go(func() error {
			rows, err := c.client.QueryJSON(gctx, cfg, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.V(1).Info("collector query failed, substituting empty result", "query", key, "error", err.Error())
				data[key] = []map[string]any{}
				return nil
			}
			data[key] = rows
			return nil
		})
	}
	// Every goroutine above returns nil, so Wait never surfaces an error —
	// per-query failures are absorbed, not aggregated.
	_ = g.Wait()

	return data
}

// Normalize converts raw query results into typed rows scoped to
// snapshotID, matching the reference collector's field mapping exactly.
func Normalize(snapshotID int64, raw map[string][]map[string]any) (users []User, roles []Role, roleGrants []RoleGrant, privileges []Privilege) {
	for _, u := range raw["users"] {
		users = append(users, User{
			SnapshotID:       snapshotID,
			Name:             str(u["name"]),
			Storage:          optStr(u["storage"]),
			AuthType:         optStr(u["auth_type"]),
			HostIP:           jsonArray(u["host_ip"]),
			HostNames:        jsonArray(u["host_names"]),
			DefaultRolesAll:  truthy(u["default_roles_all"]),
			DefaultRolesList: jsonArray(u["default_roles_list"]),
			GranteesAny:      truthy(u["grantees_any"]),
			GranteesList:     jsonArray(u["grantees_list"]),
		})
	}

	for _, r := range raw["roles"] {
		roles = append(roles, Role{
			SnapshotID: snapshotID,
			Name:       str(r["name"]),
			Storage:    optStr(r["storage"]),
		})
	}

	for _, rg := range raw["role_grants"] {
		roleGrants = append(roleGrants, RoleGrant{
			SnapshotID:      snapshotID,
			UserName:        optStr(rg["user_name"]),
			RoleName:        optStr(rg["role_name"]),
			GrantedRoleName: str(rg["granted_role_name"]),
			IsDefault:       truthy(rg["granted_role_is_default"]),
			WithAdminOption: truthy(rg["with_admin_option"]),
		})
	}

	for _, g := range raw["grants"] {
		privileges = append(privileges, Privilege{
			SnapshotID:      snapshotID,
			UserName:        optStr(g["user_name"]),
			RoleName:        optStr(g["role_name"]),
			AccessType:      str(g["access_type"]),
			Database:        optStr(g["database"]),
			TableName:       optStr(g["table"]),
			ColumnName:      optStr(g["column"]),
			IsPartialRevoke: truthy(g["is_partial_revoke"]),
			GrantOption:     truthy(g["grant_option"]),
		})
	}

	return users, roles, roleGrants, privileges
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// optStr returns nil for a missing key, an empty string, or any
// non-string value, numbers included.
func optStr(v any) *string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return &t
	case nil:
		return nil
	default:
		return nil
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "1" || t == "true"
	case float64:
		return t != 0
	default:
		return false
	}
}

// jsonArray re-serializes a decoded JSON value (or "[]" if absent) as a
// compact JSON array string, for storage in a JSONB column.
func jsonArray(v any) string {
	if v == nil {
		return "[]"
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
