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
	"sort"
	"strings"

	"github.com/jordigilh/govrbac/pkg/rbaccollector"
)

// ResolvedRole is one role reachable from a user or role, with the full
// derivation path starting at the seed.
type ResolvedRole struct {
	RoleName  string   `json:"role_name"`
	IsDirect  bool     `json:"is_direct"`
	IsDefault bool     `json:"is_default"`
	Path      []string `json:"path"`
}

const (
	SourceDirect = "direct"
	SourceRole   = "role"
)

// EffectivePrivilege is a grant attributable to a user after role
// resolution and partial-revoke subtraction.
type EffectivePrivilege struct {
	AccessType  string   `json:"access_type"`
	Database    *string  `json:"database"`
	Table       *string  `json:"table"`
	Column      *string  `json:"column"`
	GrantOption bool     `json:"grant_option"`
	Source      string   `json:"source"`
	SourceName  string   `json:"source_name"`
	Path        []string `json:"path"`
}

// Member is a direct member of a role.
type Member struct {
	Name string `json:"name"`
	Type string `json:"type"` // user or role
}

// ObjectAccess aggregates one user's access to a (database, table) pair.
type ObjectAccess struct {
	Name        string   `json:"name"`
	EntityType  string   `json:"entity_type"`
	AccessTypes []string `json:"access_types"`
	Source      string   `json:"source"`
}

// ResolveRoles walks every role reachable from seed (a user or a role).
// Cycles are legal in role inheritance — a role already visited is
// silently skipped, so each role is emitted at most once and the walk
// always terminates.
func (g *Graph) ResolveRoles(seed string) []ResolvedRole {
	visited := map[string]bool{}
	var out []ResolvedRole

	var walk func(from string, path []string)
	walk = func(from string, path []string) {
		var edges []roleEdge
		if len(path) == 1 {
			edges = g.directEdges(from)
		} else {
			edges = g.roleRoles[from]
		}
		for _, edge := range edges {
			if visited[edge.granted] {
				continue
			}
			visited[edge.granted] = true

			// Each branch copies its path so sibling walks never alias.
			next := make([]string, len(path), len(path)+1)
			copy(next, path)
			next = append(next, edge.granted)

			// is_default only describes the user's own grant; inherited
			// roles are never default.
			out = append(out, ResolvedRole{
				RoleName:  edge.granted,
				IsDirect:  len(path) == 1,
				IsDefault: len(path) == 1 && edge.isDefault,
				Path:      next,
			})
			walk(edge.granted, next)
		}
	}
	walk(seed, []string{seed})

	return out
}

// EffectivePrivileges resolves user's full privilege set: every positive
// grant reachable directly or through any resolved role, minus grants
// whose scope is covered by a reachable partial revoke with the same
// access type.
func (g *Graph) EffectivePrivileges(user string) []EffectivePrivilege {
	var grants, revokes []EffectivePrivilege

	collect := func(privs []rbaccollector.Privilege, source, sourceName string, path []string) {
		for _, p := range privs {
			ep := EffectivePrivilege{
				AccessType:  p.AccessType,
				Database:    p.Database,
				Table:       p.TableName,
				Column:      p.ColumnName,
				GrantOption: p.GrantOption,
				Source:      source,
				SourceName:  sourceName,
				Path:        path,
			}
			if p.IsPartialRevoke {
				revokes = append(revokes, ep)
			} else {
				grants = append(grants, ep)
			}
		}
	}

	collect(g.userPrivs[user], SourceDirect, user, []string{user})
	for _, role := range g.ResolveRoles(user) {
		collect(g.rolePrivs[role.RoleName], SourceRole, role.RoleName, role.Path)
	}

	var effective []EffectivePrivilege
	for _, grant := range grants {
		suppressed := false
		for _, revoke := range revokes {
			if revoke.AccessType == grant.AccessType && scopeCovers(revoke, grant) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			effective = append(effective, grant)
		}
	}
	return effective
}

// scopeCovers reports whether the revoke's scope covers the grant's: for
// each of database/table/column, the revoke is either a wildcard (null)
// or equal to the grant's value. A revoke narrower than the grant does
// not cover it, matching the target database's partial-revoke semantics
// only for exact scope matches; see DESIGN.md.
func scopeCovers(revoke, grant EffectivePrivilege) bool {
	return fieldCovers(revoke.Database, grant.Database) &&
		fieldCovers(revoke.Table, grant.Table) &&
		fieldCovers(revoke.Column, grant.Column)
}

func fieldCovers(revoke, grant *string) bool {
	if revoke == nil {
		return true
	}
	return grant != nil && *grant == *revoke
}

// RoleMembers returns the direct members of role: users and roles whose
// direct grants contain it. Transitive membership is not expanded.
func (g *Graph) RoleMembers(role string) []Member {
	var members []Member
	for _, user := range g.userNames {
		for _, edge := range g.userRoles[user] {
			if edge.granted == role {
				members = append(members, Member{Name: user, Type: "user"})
				break
			}
		}
	}
	for _, r := range g.roleNames {
		for _, edge := range g.roleRoles[r] {
			if edge.granted == role {
				members = append(members, Member{Name: r, Type: "role"})
				break
			}
		}
	}
	return members
}

// ObjectAccessFor enumerates every user with effective access to the
// given database (and table, when non-empty). A privilege matches when
// its database is null (global) or equal, and its table is null or equal.
func (g *Graph) ObjectAccessFor(database, table string) []ObjectAccess {
	var out []ObjectAccess
	for _, user := range g.userNames {
		var types []string
		var sources []string
		seenType := map[string]bool{}
		seenSource := map[string]bool{}

		for _, p := range g.EffectivePrivileges(user) {
			if !privMatchesObject(p, database, table) {
				continue
			}
			if !seenType[p.AccessType] {
				seenType[p.AccessType] = true
				types = append(types, p.AccessType)
			}
			if !seenSource[p.SourceName] {
				seenSource[p.SourceName] = true
				sources = append(sources, p.SourceName)
			}
		}

		if len(types) == 0 {
			continue
		}
		sort.Strings(types)
		sort.Strings(sources)
		out = append(out, ObjectAccess{
			Name:        user,
			EntityType:  "user",
			AccessTypes: types,
			Source:      strings.Join(sources, ", "),
		})
	}
	return out
}

// privMatchesObject reports whether p applies to database[.table]: a null
// database is a global grant, a null table covers every table in the
// database.
func privMatchesObject(p EffectivePrivilege, database, table string) bool {
	if p.Database == nil {
		return true
	}
	if *p.Database != database {
		return false
	}
	if p.Table == nil {
		return true
	}
	return table == "" || *p.Table == table
}
