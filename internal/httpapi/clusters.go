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
	"fmt"
	"net/http"
	"time"

	"github.com/jordigilh/govrbac/pkg/clusterprobe"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
)

type governanceHandler struct {
	deps GovernanceDeps
}

// validateCluster probes an unsaved config without persisting anything.
func (h *governanceHandler) validateCluster(w http.ResponseWriter, r *http.Request) {
	var req validateClusterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	result := h.deps.Prober.Test(r.Context(), "unsaved", clusterprobe.Config{
		Protocol: req.Protocol,
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		Database: derefOr(req.DefaultDatabase, ""),
	})
	writeJSON(w, http.StatusOK, result)
}

func (h *governanceHandler) createCluster(w http.ResponseWriter, r *http.Request) {
	var req createClusterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	ciphertext, err := h.deps.Secrets.Encrypt(req.Password)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	c := &clusterregistry.Cluster{
		Name:               req.Name,
		Host:               req.Host,
		Port:               req.Port,
		Protocol:           req.Protocol,
		Username:           req.Username,
		PasswordCiphertext: ciphertext,
		DefaultDatabase:    req.DefaultDatabase,
		CreatedBy:          actorID(r),
	}
	if err := h.deps.Clusters.Create(r.Context(), c); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClusterResponse(c))
}

func (h *governanceHandler) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.deps.Clusters.List(r.Context())
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	out := make([]clusterResponse, len(clusters))
	for i, c := range clusters {
		out[i] = toClusterResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *governanceHandler) getCluster(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadCluster(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toClusterResponse(c))
}

func (h *governanceHandler) patchCluster(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadCluster(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	var req patchClusterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	_, passwordChanged := clusterregistry.ApplyPatch(c, clusterregistry.Patch{
		Name:            req.Name,
		Host:            req.Host,
		Port:            req.Port,
		Protocol:        req.Protocol,
		Username:        req.Username,
		Password:        req.Password,
		DefaultDatabase: req.DefaultDatabase,
	})
	if passwordChanged {
		ciphertext, err := h.deps.Secrets.Encrypt(*req.Password)
		if err != nil {
			writeError(w, h.deps.Log, err)
			return
		}
		c.PasswordCiphertext = ciphertext
	}

	if err := h.deps.Clusters.Update(r.Context(), c); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toClusterResponse(c))
}

func (h *governanceHandler) deleteCluster(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	if err := h.deps.Clusters.SoftDelete(r.Context(), id); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// testCluster probes a saved cluster and records the outcome on its
// health state machine.
func (h *governanceHandler) testCluster(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadCluster(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	password, err := h.deps.Secrets.Decrypt(c.PasswordCiphertext)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	result := h.deps.Prober.Test(r.Context(), fmt.Sprintf("%d", c.ID), clusterprobe.Config{
		Protocol: c.Protocol,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: password,
		Database: derefOr(c.DefaultDatabase, ""),
	})

	clusterregistry.ApplyProbeResult(c, result, time.Now().UTC())
	if err := h.deps.Clusters.Update(r.Context(), c); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// clusterDiagnostics returns the stored health fields from the last
// probe, without touching the cluster.
func (h *governanceHandler) clusterDiagnostics(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadCluster(r)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"health_status":         c.HealthStatus,
		"last_tested_at":        c.LastTestedAt,
		"latency_ms":            c.LatencyMS,
		"server_version":        c.ServerVersion,
		"detected_current_user": c.DetectedCurrentUser,
		"error_code":            c.ErrorCode,
		"error_message":         c.ErrorMessage,
	})
}

func (h *governanceHandler) clusterHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	rows, err := h.deps.History.ListByCluster(r.Context(), id)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *governanceHandler) loadCluster(r *http.Request) (*clusterregistry.Cluster, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	return h.deps.Clusters.Get(r.Context(), id)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
