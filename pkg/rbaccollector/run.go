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

package rbaccollector

import (
	"context"
	"encoding/json"

	"github.com/jordigilh/govrbac/pkg/chclient"
)

// RunCollection drives one end-to-end snapshot: create the run, collect
// and normalize against cfg, persist, and transition the run's final
// status. It never returns an error for a collection-side failure — the
// failure is recorded on the run itself — but does return one if the
// run's own bookkeeping (create/mark) fails outright.
func RunCollection(ctx context.Context, repo *Repository, collector *Collector, clusterID int64, cfg chclient.Config) (*Run, error) {
	run, err := repo.CreateRun(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if err := repo.MarkRunning(ctx, run.ID); err != nil {
		return nil, err
	}

	raw := collector.CollectRaw(ctx, cfg)

	payload, marshalErr := json.Marshal(raw)
	if marshalErr != nil {
		_ = repo.MarkFailed(ctx, run.ID, marshalErr.Error())
		run.Status = RunStatusFailed
		return run, nil
	}

	users, roles, roleGrants, privileges := Normalize(run.ID, raw)
	if err := repo.StoreNormalized(ctx, run.ID, users, roles, roleGrants, privileges); err != nil {
		_ = repo.MarkFailed(ctx, run.ID, err.Error())
		run.Status = RunStatusFailed
		return run, nil
	}

	if err := repo.MarkCompleted(ctx, run.ID, string(payload)); err != nil {
		return nil, err
	}
	run.Status = RunStatusCompleted
	return run, nil
}
