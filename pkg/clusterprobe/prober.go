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

package clusterprobe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Prober validates connectivity to target clusters over their HTTP
// interface, one GET request per probe the same way the reference client
// issues every query: ?user=&password=&query=&database=.
type Prober struct {
	client   *http.Client
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewProber builds a Prober whose HTTP requests time out after timeout.
func NewProber(timeout time.Duration) *Prober {
	return &Prober{
		client:   &http.Client{Timeout: timeout},
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (p *Prober) breakerFor(clusterID string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[clusterID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cluster-probe-" + clusterID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	p.breakers[clusterID] = b
	return b
}

// httpStatusError carries the response status code alongside the error
// message, so the classifier can use HTTP 401/403 as an AUTH_FAILED
// signal even when the body text doesn't mention authentication.
type httpStatusError struct {
	statusCode int
	body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("cluster responded with HTTP %d: %s", e.statusCode, e.body)
}

// Test runs a SELECT 1 probe against cfg, then best-effort fetches the
// server version and current user. clusterID scopes the circuit breaker
// so repeated failures against one cluster trip independently of others.
func (p *Prober) Test(ctx context.Context, clusterID string, cfg Config) Result {
	breaker := p.breakerFor(clusterID)

	start := time.Now()
	_, err := breaker.Execute(func() (any, error) {
		return p.query(ctx, cfg, "SELECT 1", "")
	})
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		statusCode := 0
		var statusErr *httpStatusError
		if se, ok := err.(*httpStatusError); ok {
			statusErr = se
		}
		if statusErr != nil {
			statusCode = statusErr.statusCode
		}
		code, suggestions := classify(err.Error(), statusCode)
		return Result{
			OK:          false,
			ErrorCode:   code,
			Message:     "Connection test failed",
			Suggestions: suggestions,
			RawError:    err.Error(),
		}
	}

	result := Result{
		OK:      true,
		Message: "Connection successful",
	}
	result.LatencyMS = &elapsed

	if version, err := p.query(ctx, cfg, "SELECT version()", ""); err == nil {
		result.ServerVersion = strings.TrimSpace(version)
	}
	if user, err := p.query(ctx, cfg, "SELECT currentUser()", ""); err == nil {
		result.CurrentUser = strings.TrimSpace(user)
	}

	return result
}

func (p *Prober) query(ctx context.Context, cfg Config, statement, database string) (string, error) {
	base := fmt.Sprintf("%s://%s:%d", cfg.Protocol, cfg.Host, cfg.Port)

	values := url.Values{}
	values.Set("user", cfg.Username)
	values.Set("password", cfg.Password)
	values.Set("query", statement)
	if database == "" {
		database = cfg.Database
	}
	if database != "" {
		values.Set("database", database)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+values.Encode(), nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "failed to build probe request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", &httpStatusError{statusCode: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	if readErr != nil {
		return "", apperrors.Wrap(readErr, apperrors.ErrorTypeNetwork, "failed to read probe response")
	}

	return strings.TrimSpace(string(body)), nil
}

