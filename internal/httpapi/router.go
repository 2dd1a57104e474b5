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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-logr/logr"

	"github.com/jordigilh/govrbac/internal/crypto"
	"github.com/jordigilh/govrbac/pkg/clusterprobe"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
	"github.com/jordigilh/govrbac/pkg/entityhistory"
	"github.com/jordigilh/govrbac/pkg/executor"
	"github.com/jordigilh/govrbac/pkg/orchestration"
	"github.com/jordigilh/govrbac/pkg/proposal"
	"github.com/jordigilh/govrbac/pkg/rbaccollector"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// GovernanceDeps wires every component the governance surface serves.
type GovernanceDeps struct {
	Clusters     *clusterregistry.Repository
	Prober       *clusterprobe.Prober
	Secrets      *crypto.SecretBox
	Snapshots    *rbaccollector.Repository
	Collector    *rbaccollector.Collector
	Proposals    *proposal.Repository
	Engine       *proposal.Engine
	Orchestrator *orchestration.Orchestrator
	Jobs         orchestration.JobLister
	History      *entityhistory.Repository
	Log          logr.Logger
}

// NewGovernanceRouter mounts the operator-facing API.
func NewGovernanceRouter(deps GovernanceDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
	}))

	h := &governanceHandler{deps: deps}

	r.Route("/clusters", func(r chi.Router) {
		r.Post("/validate", h.validateCluster)
		r.Post("/", h.createCluster)
		r.Get("/", h.listClusters)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getCluster)
			r.Patch("/", h.patchCluster)
			r.Delete("/", h.deleteCluster)
			r.Post("/test", h.testCluster)
			r.Get("/diagnostics", h.clusterDiagnostics)
			r.Get("/history", h.clusterHistory)
		})
	})

	r.Route("/snapshots", func(r chi.Router) {
		r.Post("/collect", h.collectSnapshot)
		r.Get("/", h.listSnapshots)
		r.Get("/diff", h.diffSnapshots)
	})

	r.Route("/explorer", func(r chi.Router) {
		r.Get("/users", h.explorerUsers)
		r.Get("/users/{name}", h.explorerUser)
		r.Get("/roles", h.explorerRoles)
		r.Get("/roles/{name}", h.explorerRole)
		r.Get("/objects/{db}", h.explorerObject)
		r.Get("/objects/{db}/{table}", h.explorerObject)
	})

	r.Route("/proposals", func(r chi.Router) {
		r.Post("/", h.createProposal)
		r.Post("/legacy", h.createLegacyProposal)
		r.Get("/", h.listProposals)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getProposal)
			r.Get("/operations", h.listProposalOperations)
			r.Post("/approve", h.approveProposal)
			r.Post("/reject", h.rejectProposal)
			r.Post("/dry-run", h.dryRunProposal)
			r.Post("/execute", h.executeProposal)
			r.Get("/jobs", h.listProposalJobs)
		})
	})

	return r
}

// ExecutorDeps wires the executor's internal surface.
type ExecutorDeps struct {
	Pipeline     *executor.Pipeline
	SharedSecret string
	Log          logr.Logger
}

// NewExecutorRouter mounts the internal job API, authenticated by the
// shared header key; any mismatch yields 403.
func NewExecutorRouter(deps ExecutorDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(sharedSecretAuth(deps.SharedSecret, deps.Log))

	h := &executorHandler{deps: deps}

	r.Post("/jobs", h.createJob)
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{id}", h.getJob)

	return r
}
