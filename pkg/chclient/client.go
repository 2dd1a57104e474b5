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

// Package chclient is a thin HTTP client for the ClickHouse query
// interface, shared by the RBAC snapshot collector and the statement
// executor. Reads are a GET with ?user=&password=&query=; Execute POSTs
// the statement as the request body, with the credentials still on the
// query string.
package chclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Config is the subset of a cluster's connection fields a query needs.
// Password arrives already decrypted — the caller owns the secret box.
type Config struct {
	Protocol string
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// Client issues queries and statements over a cluster's HTTP interface.
type Client struct {
	http *http.Client
}

func New(httpClient *http.Client) *Client {
	return &Client{http: httpClient}
}

// Query executes statement and returns the trimmed raw response body.
func (c *Client) Query(ctx context.Context, cfg Config, statement string) (string, error) {
	base := fmt.Sprintf("%s://%s:%d", cfg.Protocol, cfg.Host, cfg.Port)

	values := url.Values{}
	values.Set("user", cfg.Username)
	values.Set("password", cfg.Password)
	values.Set("query", statement)
	if cfg.Database != "" {
		values.Set("database", cfg.Database)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+values.Encode(), nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "failed to build query request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "query request failed")
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", apperrors.Newf(apperrors.ErrorTypeUpstream, "cluster responded with HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if readErr != nil {
		return "", apperrors.Wrap(readErr, apperrors.ErrorTypeNetwork, "failed to read query response")
	}

	return strings.TrimSpace(string(body)), nil
}

// Exec runs statement and discards the response body. Used for DDL where
// only success/failure matters.
func (c *Client) Exec(ctx context.Context, cfg Config, statement string) error {
	_, err := c.Query(ctx, cfg, statement)
	return err
}

// StatementError is a non-2xx response to an executed statement. Body is
// the server's raw response text; the executor truncates it before
// persisting.
type StatementError struct {
	StatusCode int
	Body       string
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("cluster responded with HTTP %d: %s", e.StatusCode, e.Body)
}

// Execute POSTs statement as the request body with user/password
// credentials on the query string, the shape the executor uses for DDL.
// A status ≥ 400 returns a *StatementError carrying the response body.
func (c *Client) Execute(ctx context.Context, cfg Config, statement string) (string, error) {
	base := fmt.Sprintf("%s://%s:%d", cfg.Protocol, cfg.Host, cfg.Port)

	values := url.Values{}
	values.Set("user", cfg.Username)
	values.Set("password", cfg.Password)
	if cfg.Database != "" {
		values.Set("database", cfg.Database)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"?"+values.Encode(), strings.NewReader(statement))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "failed to build statement request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeNetwork, "statement request failed")
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", &StatementError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if readErr != nil {
		return "", apperrors.Wrap(readErr, apperrors.ErrorTypeNetwork, "failed to read statement response")
	}

	return strings.TrimSpace(string(body)), nil
}

// QueryJSON executes statement FORMAT JSONEachRow and decodes each line
// into a map, matching the reference client's execute_json behavior.
func (c *Client) QueryJSON(ctx context.Context, cfg Config, statement string) ([]map[string]any, error) {
	raw, err := c.Query(ctx, cfg, statement+" FORMAT JSONEachRow")
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	lines := strings.Split(raw, "\n")
	rows := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeUpstream, "failed to decode query result row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
