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

// Package entityhistory derives the per-cluster audit trail of applied
// changes from successful job steps, keyed by a stable
// (entity_type, entity_name) extracted from each operation.
package entityhistory

import (
	"fmt"
	"time"

	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

// Row is one applied-change record.
type Row struct {
	ID          int64   `db:"id"`
	ClusterID   int64   `db:"cluster_id"`
	EntityType  string  `db:"entity_type"`
	EntityName  string  `db:"entity_name"`
	Action      string  `db:"action"`
	Details     *string `db:"details"`
	ProposalID  *int64  `db:"proposal_id"`
	JobID       *int64  `db:"job_id"`
	ActorUserID *int64  `db:"actor_user_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// namedEntityTypes maps create/alter/drop operation families to their
// entity type; nameParam gives the params key holding the entity name.
var namedEntityTypes = map[string]string{
	"create_user":             "user",
	"alter_user_password":     "user",
	"drop_user":               "user",
	"create_role":             "role",
	"drop_role":               "role",
	"create_settings_profile": "settings_profile",
	"alter_settings_profile":  "settings_profile",
	"drop_settings_profile":   "settings_profile",
	"create_quota":            "quota",
	"alter_quota":             "quota",
	"drop_quota":              "quota",
	"create_row_policy":       "row_policy",
	"alter_row_policy":        "row_policy",
	"drop_row_policy":         "row_policy",
}

// nameParam is the params key holding the entity name per operation
// family; user and role operations use their own key.
func nameParam(opType string) string {
	switch namedEntityTypes[opType] {
	case "user":
		return "username"
	case "role":
		return "role_name"
	default:
		return "name"
	}
}

// Extract maps an (operation_type, params) pair to its audit identity.
// Unknown operation types produce no history row (ok = false).
func Extract(opType string, params sqltemplate.Params) (entityType, entityName string, ok bool) {
	str := func(key string) string {
		if v, exists := params[key]; exists && v != nil {
			if s, isStr := v.(string); isStr {
				return s
			}
		}
		return ""
	}

	if et, named := namedEntityTypes[opType]; named {
		return et, str(nameParam(opType)), true
	}

	switch opType {
	case "set_default_roles":
		return "user", str("username"), true
	case "grant_role", "revoke_role":
		return "role_assignment", fmt.Sprintf("%s -> %s", str("role_name"), str("target_name")), true
	case "grant_privilege", "revoke_privilege":
		scope := scopeLabel(str("database"), str("table"))
		return "privilege", fmt.Sprintf("%s on %s", str("privilege"), scope), true
	case "assign_settings_profile":
		return "settings_profile", fmt.Sprintf("%s -> %s", str("profile_name"), str("target_name")), true
	case "assign_quota":
		return "quota", fmt.Sprintf("%s -> %s", str("quota_name"), str("target_name")), true
	default:
		return "", "", false
	}
}

func scopeLabel(database, table string) string {
	if database == "" || database == "*" {
		return "*.*"
	}
	if table == "" || table == "*" {
		return database + ".*"
	}
	return database + "." + table
}
