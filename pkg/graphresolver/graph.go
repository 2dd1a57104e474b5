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

// Package graphresolver builds an in-memory user→role→privilege graph
// from one RBAC snapshot and answers effective-privilege, membership, and
// object-access questions against it. A Graph is built once per resolve
// call and holds no persistent shared state; everything here runs in
// memory with no I/O.
package graphresolver

import "github.com/jordigilh/govrbac/pkg/rbaccollector"

// roleEdge is one granted-role edge out of a user or role.
type roleEdge struct {
	granted         string
	isDefault       bool
	withAdminOption bool
}

// Graph holds the adjacency maps for one snapshot. Name slices preserve
// snapshot row order so every walk over users or roles is deterministic.
type Graph struct {
	userNames []string
	roleNames []string
	userSet   map[string]bool

	userRoles map[string][]roleEdge
	roleRoles map[string][]roleEdge

	userPrivs map[string][]rbaccollector.Privilege
	rolePrivs map[string][]rbaccollector.Privilege
}

// Build constructs the graph from a normalized snapshot.
func Build(snap *rbaccollector.Snapshot) *Graph {
	g := &Graph{
		userSet:   make(map[string]bool, len(snap.Users)),
		userRoles: make(map[string][]roleEdge),
		roleRoles: make(map[string][]roleEdge),
		userPrivs: make(map[string][]rbaccollector.Privilege),
		rolePrivs: make(map[string][]rbaccollector.Privilege),
	}

	for _, u := range snap.Users {
		if !g.userSet[u.Name] {
			g.userSet[u.Name] = true
			g.userNames = append(g.userNames, u.Name)
		}
	}
	for _, r := range snap.Roles {
		g.roleNames = append(g.roleNames, r.Name)
	}

	for _, rg := range snap.RoleGrants {
		edge := roleEdge{
			granted:         rg.GrantedRoleName,
			isDefault:       rg.IsDefault,
			withAdminOption: rg.WithAdminOption,
		}
		switch {
		case rg.UserName != nil:
			g.userRoles[*rg.UserName] = append(g.userRoles[*rg.UserName], edge)
		case rg.RoleName != nil:
			g.roleRoles[*rg.RoleName] = append(g.roleRoles[*rg.RoleName], edge)
		}
	}

	for _, p := range snap.Privileges {
		switch {
		case p.UserName != nil:
			g.userPrivs[*p.UserName] = append(g.userPrivs[*p.UserName], p)
		case p.RoleName != nil:
			g.rolePrivs[*p.RoleName] = append(g.rolePrivs[*p.RoleName], p)
		}
	}

	return g
}

// UserNames returns every user in snapshot row order.
func (g *Graph) UserNames() []string {
	return g.userNames
}

// RoleNames returns every role in snapshot row order.
func (g *Graph) RoleNames() []string {
	return g.roleNames
}

// HasUser reports whether name is a user in this snapshot.
func (g *Graph) HasUser(name string) bool {
	return g.userSet[name]
}

// HasRole reports whether name is a role in this snapshot.
func (g *Graph) HasRole(name string) bool {
	for _, r := range g.roleNames {
		if r == name {
			return true
		}
	}
	return false
}

// directEdges returns the outgoing granted-role edges for seed, which may
// be a user or a role.
func (g *Graph) directEdges(seed string) []roleEdge {
	if g.userSet[seed] {
		return g.userRoles[seed]
	}
	return g.roleRoles[seed]
}
