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

// Package orchestration drives the governance → executor boundary: it
// posts approved change plans as jobs, maps job outcomes back to terminal
// proposal statuses, and emits the entity-history trail for applied
// steps.
package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
	"github.com/jordigilh/govrbac/pkg/executor"
)

// AuthHeader carries the shared secret on every governance → executor
// request; the executor rejects any mismatch with 403.
const AuthHeader = "X-Executor-Key"

// ExecutorClient is the RPC client for the executor's internal job API.
// A circuit breaker trips fast when the executor is in a failure spiral
// instead of stacking timeouts request after request.
type ExecutorClient struct {
	baseURL string
	secret  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     logr.Logger
}

func NewExecutorClient(baseURL, secret string, timeout time.Duration, log logr.Logger) *ExecutorClient {
	return &ExecutorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "executor-rpc",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		log: log,
	}
}

// JobLister reads jobs back from the executor, for the proposal jobs
// endpoint.
type JobLister interface {
	ListJobs(ctx context.Context, proposalID int64) ([]executor.JobResult, error)
}

// ListJobs fetches every job recorded for proposalID.
func (c *ExecutorClient) ListJobs(ctx context.Context, proposalID int64) ([]executor.JobResult, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		u := fmt.Sprintf("%s/jobs?proposal_id=%d", c.baseURL, proposalID)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, errors.Wrap(err, "build jobs request")
		}
		httpReq.Header.Set(AuthHeader, c.secret)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, errors.Wrap(err, "get jobs")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read jobs response")
		}
		if resp.StatusCode >= 400 {
			return nil, errors.Errorf("executor responded with HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var results []executor.JobResult
		if err := json.Unmarshal(body, &results); err != nil {
			return nil, errors.Wrap(err, "decode jobs response")
		}
		return results, nil
	})
	if err != nil {
		return nil, apperrors.NewUpstreamError(err, "executor job listing failed")
	}
	return res.([]executor.JobResult), nil
}

// CreateJob submits req to the executor and returns the finished job with
// its steps. Transport failures, auth mismatches, and non-2xx responses
// all surface as UpstreamError.
func (c *ExecutorClient) CreateJob(ctx context.Context, req executor.CreateJobRequest) (*executor.JobResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to encode job request")
	}

	res, err := c.breaker.Execute(func() (any, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(payload))
		if err != nil {
			return nil, errors.Wrap(err, "build job request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set(AuthHeader, c.secret)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, errors.Wrap(err, "post job request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read job response")
		}
		if resp.StatusCode >= 400 {
			return nil, errors.Errorf("executor responded with HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var result executor.JobResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, errors.Wrap(err, "decode job response")
		}
		return &result, nil
	})
	if err != nil {
		return nil, apperrors.NewUpstreamError(err, "executor job submission failed")
	}
	return res.(*executor.JobResult), nil
}
