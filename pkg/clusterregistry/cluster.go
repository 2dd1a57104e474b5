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

// Package clusterregistry persists target cluster connection config and
// tracks each cluster's health lifecycle across probes and edits.
package clusterregistry

import "time"

const (
	HealthNeverTested = "never_tested"
	HealthHealthy     = "healthy"
	HealthFailed      = "failed"
)

// Cluster is a registered connection target. PasswordCiphertext is AEAD
// output and is never serialized back to an external caller.
type Cluster struct {
	ID                  int64     `db:"id"`
	Name                string    `db:"name"`
	Host                string    `db:"host"`
	Port                int       `db:"port"`
	Protocol            string    `db:"protocol"`
	Username            string    `db:"username"`
	PasswordCiphertext  string    `db:"password_ciphertext"`
	DefaultDatabase     *string   `db:"default_database"`
	IsDeleted           bool      `db:"is_deleted"`
	HealthStatus        string    `db:"health_status"`
	LastTestedAt        *time.Time `db:"last_tested_at"`
	LatencyMS           *int64    `db:"latency_ms"`
	ServerVersion       *string   `db:"server_version"`
	DetectedCurrentUser *string   `db:"detected_current_user"`
	ErrorCode           *string   `db:"error_code"`
	ErrorMessage        *string   `db:"error_message"`
	CreatedBy           int64     `db:"created_by"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// Patch is a partial update to a Cluster; nil fields are left unchanged.
// Name and DefaultDatabase are non-critical: they never reset health
// state. Host, Port, Protocol, Username, and Password are critical.
type Patch struct {
	Name            *string
	Host            *string
	Port            *int
	Protocol        *string
	Username        *string
	Password        *string
	DefaultDatabase *string
}
