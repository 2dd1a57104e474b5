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
	"github.com/jordigilh/govrbac/pkg/chclient"
	"github.com/jordigilh/govrbac/pkg/rbaccollector"
	"github.com/jordigilh/govrbac/pkg/snapshotdiff"
)

const defaultSnapshotLimit = 20

// collectSnapshot synchronously runs one collection against the cluster.
func (h *governanceHandler) collectSnapshot(w http.ResponseWriter, r *http.Request) {
	var req collectSnapshotRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	cluster, err := h.deps.Clusters.Get(r.Context(), req.ClusterID)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	if cluster.IsDeleted {
		writeError(w, h.deps.Log, apperrors.NewNotFoundError("cluster"))
		return
	}

	password, err := h.deps.Secrets.Decrypt(cluster.PasswordCiphertext)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	run, err := rbaccollector.RunCollection(r.Context(), h.deps.Snapshots, h.deps.Collector, cluster.ID, chclient.Config{
		Protocol: cluster.Protocol,
		Host:     cluster.Host,
		Port:     cluster.Port,
		Username: cluster.Username,
		Password: password,
		Database: derefOr(cluster.DefaultDatabase, ""),
	})
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, runView(run))
}

func (h *governanceHandler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	clusterID, err := strconv.ParseInt(r.URL.Query().Get("cluster_id"), 10, 64)
	if err != nil || clusterID <= 0 {
		writeError(w, h.deps.Log, apperrors.NewValidationError("cluster_id query parameter is required"))
		return
	}
	limit := defaultSnapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.deps.Snapshots.ListRuns(r.Context(), clusterID)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}

	out := make([]map[string]any, len(runs))
	for i, run := range runs {
		out[i] = runView(run)
	}
	writeJSON(w, http.StatusOK, out)
}

// diffSnapshots compares two completed runs of the same cluster.
func (h *governanceHandler) diffSnapshots(w http.ResponseWriter, r *http.Request) {
	fromID, err1 := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	toID, err2 := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err1 != nil || err2 != nil || fromID <= 0 || toID <= 0 {
		writeError(w, h.deps.Log, apperrors.NewValidationError("from and to query parameters are required"))
		return
	}

	from, err := h.deps.Snapshots.LoadSnapshot(r.Context(), fromID)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	to, err := h.deps.Snapshots.LoadSnapshot(r.Context(), toID)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	if from.Run.ClusterID != to.Run.ClusterID {
		writeError(w, h.deps.Log, apperrors.NewValidationError("snapshots belong to different clusters"))
		return
	}

	writeJSON(w, http.StatusOK, snapshotdiff.Compare(from, to))
}

// runView omits the raw payload, which can be large, from listings.
func runView(run *rbaccollector.Run) map[string]any {
	return map[string]any{
		"id":           run.ID,
		"cluster_id":   run.ClusterID,
		"status":       run.Status,
		"started_at":   run.StartedAt,
		"completed_at": run.CompletedAt,
		"error":        run.Error,
	}
}
