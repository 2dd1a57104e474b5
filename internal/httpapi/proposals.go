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
	"github.com/jordigilh/govrbac/pkg/proposal"
)

func (h *governanceHandler) createProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	ops := make([]proposal.OperationInput, len(req.Operations))
	for i, op := range req.Operations {
		ops[i] = proposal.OperationInput{OperationType: op.OperationType, Params: op.Params}
	}

	p, created, err := h.deps.Engine.Create(r.Context(), proposal.CreateRequest{
		ClusterID:   req.ClusterID,
		CreatedBy:   actorID(r),
		Title:       req.Title,
		Description: req.Description,
		Reason:      req.Reason,
		Operations:  ops,
	})
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"proposal":   p,
		"operations": created,
	})
}

func (h *governanceHandler) createLegacyProposal(w http.ResponseWriter, r *http.Request) {
	var req createLegacyProposalRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	p, err := h.deps.Engine.CreateLegacy(r.Context(), proposal.LegacyCreateRequest{
		ClusterID:  req.ClusterID,
		CreatedBy:  actorID(r),
		Type:       req.Type,
		Reason:     req.Reason,
		DBName:     req.DBName,
		TableName:  req.TableName,
		TargetType: req.TargetType,
		TargetName: req.TargetName,
	})
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *governanceHandler) listProposals(w http.ResponseWriter, r *http.Request) {
	var clusterID *int64
	if raw := r.URL.Query().Get("cluster_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, h.deps.Log, apperrors.NewValidationError("invalid cluster_id"))
			return
		}
		clusterID = &id
	}

	proposals, err := h.deps.Proposals.List(r.Context(), clusterID)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (h *governanceHandler) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	p, err := h.deps.Proposals.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	reviews, err := h.deps.Proposals.ListReviews(r.Context(), id)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposal": p,
		"reviews":  reviews,
	})
}

func (h *governanceHandler) listProposalOperations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	if _, err := h.deps.Proposals.Get(r.Context(), id); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	ops, err := h.deps.Proposals.ListOperations(r.Context(), id)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}

func (h *governanceHandler) approveProposal(w http.ResponseWriter, r *http.Request) {
	h.decideProposal(w, r, proposal.DecisionApproved)
}

func (h *governanceHandler) rejectProposal(w http.ResponseWriter, r *http.Request) {
	h.decideProposal(w, r, proposal.DecisionRejected)
}

func (h *governanceHandler) decideProposal(w http.ResponseWriter, r *http.Request, decision string) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}

	var req reviewRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, h.deps.Log, err)
			return
		}
	}

	p, err := h.deps.Proposals.Decide(r.Context(), id, actorID(r), decision, req.Comment)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *governanceHandler) dryRunProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	result, err := h.deps.Orchestrator.DryRun(r.Context(), id, actorID(r))
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *governanceHandler) executeProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	p, result, err := h.deps.Orchestrator.Execute(r.Context(), id, actorID(r))
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proposal": p,
		"job":      result,
	})
}

func (h *governanceHandler) listProposalJobs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	if _, err := h.deps.Proposals.Get(r.Context(), id); err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	jobs, err := h.deps.Jobs.ListJobs(r.Context(), id)
	if err != nil {
		writeError(w, h.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
