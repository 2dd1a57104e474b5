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

package httpapi

import (
	"net/http"
	"strconv"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
	"github.com/jordigilh/govrbac/pkg/graphresolver"
	"github.com/jordigilh/govrbac/pkg/rbaccollector"
)

// resolveGraph loads the requested snapshot (or the cluster's latest
// completed one) and builds the in-memory graph for this request.
func (h *governanceHandler) resolveGraph(r *http.Request) (*graphresolver.Graph, *rbaccollector.Snapshot, error) {
	query := r.URL.Query()

	clusterID, err := strconv.ParseInt(query.Get("cluster_id"), 10, 64)
	if err != nil || clusterID <= 0 {
		return nil, nil, apperrors.NewValidationError("cluster_id query parameter is required")
	}

	var runID int64
	if raw := query.Get("snapshot_id"); raw != "" {
		runID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || runID <= 0 {
			return nil, nil, apperrors.NewValidationError("invalid snapshot_id")
		}
	} else {
		run, err := h.deps.Snapshots.LatestCompletedRun(r.Context(), clusterID)
		if err != nil {
			return nil, nil, err
		}
		runID = run.ID
	}

	snap, err := h.deps.Snapshots.LoadSnapshot(r.Context(), runID)
	if err != nil {
		return nil, nil, err
	}
	if snap.Run.ClusterID != clusterID {
		return nil, nil, apperrors.NewValidationError("snapshot does not belong to this cluster")
	}
	return graphresolver.Build(snap), snap, nil
}

func (h *governanceHandler) explorerUsers(w http.ResponseWriter, r *http.Request) {
	graph, snap, err := h.resolveGraph(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	users := make([]map[string]any, 0, len(snap.Users))
	for _, u := range snap.Users {
		users = append(users, map[string]any{
			"name":           u.Name,
			"auth_type":      u.AuthType,
			"resolved_roles": len(graph.ResolveRoles(u.Name)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id": snap.Run.ID,
		"users":       users,
	})
}

func (h *governanceHandler) explorerUser(w http.ResponseWriter, r *http.Request) {
	graph, snap, err := h.resolveGraph(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	name := urlParam(r, "name")
	if !graph.HasUser(name) {
		writeError(w, h.deps.Log, apperrors.NewNotFoundError("user"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id":          snap.Run.ID,
		"name":                 name,
		"roles":                graph.ResolveRoles(name),
		"effective_privileges": graph.EffectivePrivileges(name),
	})
}

func (h *governanceHandler) explorerRoles(w http.ResponseWriter, r *http.Request) {
	graph, snap, err := h.resolveGraph(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	roles := make([]map[string]any, 0, len(graph.RoleNames()))
	for _, name := range graph.RoleNames() {
		roles = append(roles, map[string]any{
			"name":    name,
			"members": len(graph.RoleMembers(name)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id": snap.Run.ID,
		"roles":       roles,
	})
}

func (h *governanceHandler) explorerRole(w http.ResponseWriter, r *http.Request) {
	graph, snap, err := h.resolveGraph(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	name := urlParam(r, "name")
	if !graph.HasRole(name) {
		writeError(w, h.deps.Log, apperrors.NewNotFoundError("role"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id":    snap.Run.ID,
		"name":           name,
		"members":        graph.RoleMembers(name),
		"inherited_from": graph.ResolveRoles(name),
	})
}

func (h *governanceHandler) explorerObject(w http.ResponseWriter, r *http.Request) {
	graph, snap, err := h.resolveGraph(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	database := urlParam(r, "db")
	table := urlParam(r, "table")

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id": snap.Run.ID,
		"database":    database,
		"table":       table,
		"access":      graph.ObjectAccessFor(database, table),
	})
}
