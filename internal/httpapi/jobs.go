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
	"github.com/jordigilh/govrbac/pkg/executor"
)

type executorHandler struct {
	deps ExecutorDeps
}

type createJobBody struct {
	ProposalID    int64                    `json:"proposal_id" validate:"required,min=1"`
	ClusterID     int64                    `json:"cluster_id" validate:"required,min=1"`
	ActorUserID   int64                    `json:"actor_user_id"`
	CorrelationID string                   `json:"correlation_id" validate:"required"`
	Mode          string                   `json:"mode" validate:"required,oneof=dry_run apply"`
	ClusterConfig executor.ClusterConfig   `json:"cluster_config" validate:"required"`
	Operations    []executor.OperationSpec `json:"operations" validate:"required,min=1"`
}

// createJob admits a job request. Admission is idempotent: the same
// correlation_id always responds with the same job, created fresh only
// the first time.
func (h *executorHandler) createJob(w http.ResponseWriter, r *http.Request) {
	var body createJobBody
	if err := decodeAndValidate(r, &body); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	result, err := h.deps.Pipeline.CreateJob(r.Context(), executor.CreateJobRequest{
		ProposalID:    body.ProposalID,
		ClusterID:     body.ClusterID,
		ActorUserID:   body.ActorUserID,
		CorrelationID: body.CorrelationID,
		Mode:          body.Mode,
		ClusterConfig: body.ClusterConfig,
		Operations:    body.Operations,
	})
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *executorHandler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	result, err := h.deps.Pipeline.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *executorHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	var proposalID *int64
	if raw := r.URL.Query().Get("proposal_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, h.deps.Log, apperrors.NewValidationError("invalid proposal_id"))
			return
		}
		proposalID = &id
	}

	results, err := h.deps.Pipeline.ListJobs(r.Context(), proposalID)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
