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

// Package snapshotdiff computes the structural delta between two RBAC
// snapshots of the same cluster. Each entity family is keyed, then set
// differences produce added/removed, and same-key entities whose
// canonical serialization differs are reported as modified.
package snapshotdiff

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jordigilh/govrbac/pkg/rbaccollector"
)

// FamilyDiff is the delta for one entity family, keyed entries only.
type FamilyDiff struct {
	Added         []string `json:"added"`
	Removed       []string `json:"removed"`
	Modified      []string `json:"modified"`
	AddedCount    int      `json:"added_count"`
	RemovedCount  int      `json:"removed_count"`
	ModifiedCount int      `json:"modified_count"`
}

// Diff is the full two-snapshot comparison.
type Diff struct {
	FromSnapshotID int64      `json:"from_snapshot_id"`
	ToSnapshotID   int64      `json:"to_snapshot_id"`
	Users          FamilyDiff `json:"users"`
	Roles          FamilyDiff `json:"roles"`
	RoleGrants     FamilyDiff `json:"role_grants"`
	Privileges     FamilyDiff `json:"privileges"`
}

// Compare diffs from against to, family by family.
func Compare(from, to *rbaccollector.Snapshot) *Diff {
	return &Diff{
		FromSnapshotID: from.Run.ID,
		ToSnapshotID:   to.Run.ID,
		Users:          diffFamily(keyUsers(from.Users), keyUsers(to.Users)),
		Roles:          diffFamily(keyRoles(from.Roles), keyRoles(to.Roles)),
		RoleGrants:     diffFamily(keyRoleGrants(from.RoleGrants), keyRoleGrants(to.RoleGrants)),
		Privileges:     diffFamily(keyPrivileges(from.Privileges), keyPrivileges(to.Privileges)),
	}
}

// keyed maps entity key → canonical serialization, preserving insertion
// order of keys so added/removed listings are stable.
type keyed struct {
	order []string
	body  map[string]string
}

func newKeyed() *keyed {
	return &keyed{body: make(map[string]string)}
}

func (k *keyed) add(key, canonical string) {
	if _, exists := k.body[key]; !exists {
		k.order = append(k.order, key)
	}
	k.body[key] = canonical
}

func diffFamily(from, to *keyed) FamilyDiff {
	d := FamilyDiff{
		Added:    []string{},
		Removed:  []string{},
		Modified: []string{},
	}

	for _, key := range to.order {
		before, existed := from.body[key]
		if !existed {
			d.Added = append(d.Added, key)
			continue
		}
		if before != to.body[key] {
			d.Modified = append(d.Modified, key)
		}
	}
	for _, key := range from.order {
		if _, exists := to.body[key]; !exists {
			d.Removed = append(d.Removed, key)
		}
	}

	d.AddedCount = len(d.Added)
	d.RemovedCount = len(d.Removed)
	d.ModifiedCount = len(d.Modified)
	return d
}

// canonical serializes fields as JSON with sorted keys and every value
// coerced to a string, so two rows compare equal iff their semantic
// content does.
func canonical(fields map[string]any) string {
	coerced := make(map[string]string, len(fields))
	for k, v := range fields {
		coerced[k] = stringify(v)
	}
	// Go's encoder writes map keys in sorted order, which is exactly the
	// canonical property required here.
	out, _ := json.Marshal(coerced)
	return string(out)
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case *string:
		if s == nil {
			return ""
		}
		return *s
	case string:
		return s
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

func keyUsers(users []rbaccollector.User) *keyed {
	k := newKeyed()
	for _, u := range users {
		k.add(u.Name, canonical(map[string]any{
			"name":               u.Name,
			"storage":            u.Storage,
			"auth_type":          u.AuthType,
			"host_ip":            u.HostIP,
			"host_names":         u.HostNames,
			"default_roles_all":  u.DefaultRolesAll,
			"default_roles_list": u.DefaultRolesList,
			"grantees_any":       u.GranteesAny,
			"grantees_list":      u.GranteesList,
		}))
	}
	return k
}

func keyRoles(roles []rbaccollector.Role) *keyed {
	k := newKeyed()
	for _, r := range roles {
		k.add(r.Name, canonical(map[string]any{
			"name":    r.Name,
			"storage": r.Storage,
		}))
	}
	return k
}

func keyRoleGrants(grants []rbaccollector.RoleGrant) *keyed {
	k := newKeyed()
	for _, g := range grants {
		key := joinKey(deref(g.UserName), deref(g.RoleName), g.GrantedRoleName)
		k.add(key, canonical(map[string]any{
			"user_name":         g.UserName,
			"role_name":         g.RoleName,
			"granted_role_name": g.GrantedRoleName,
			"is_default":        g.IsDefault,
			"with_admin_option": g.WithAdminOption,
		}))
	}
	return k
}

func keyPrivileges(privs []rbaccollector.Privilege) *keyed {
	k := newKeyed()
	for _, p := range privs {
		key := joinKey(deref(p.UserName), deref(p.RoleName), p.AccessType,
			deref(p.Database), deref(p.TableName), deref(p.ColumnName))
		k.add(key, canonical(map[string]any{
			"user_name":         p.UserName,
			"role_name":         p.RoleName,
			"access_type":       p.AccessType,
			"database":          p.Database,
			"table_name":        p.TableName,
			"column_name":       p.ColumnName,
			"is_partial_revoke": p.IsPartialRevoke,
			"grant_option":      p.GrantOption,
		}))
	}
	return k
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
