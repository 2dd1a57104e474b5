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

// Package clusterprobe validates connectivity to a registered target
// cluster and classifies failures into an operator-actionable error code.
package clusterprobe

// Result is the outcome of one connectivity probe.
type Result struct {
	OK            bool
	ErrorCode     string
	Message       string
	Suggestions   []string
	LatencyMS     *int64
	ServerVersion string
	CurrentUser   string
	RawError      string
}

// Config is the subset of a cluster's connection fields a probe needs.
// Password arrives already decrypted — the caller owns the secret box.
type Config struct {
	Protocol string
	Host     string
	Port     int
	Username string
	Password string
	Database string
}
