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

package clusterregistry

import (
	"time"

	"github.com/jordigilh/govrbac/pkg/clusterprobe"
)

// ApplyPatch mutates c in place with the non-nil fields of patch. It
// returns passwordChanged so the caller — the only place that holds the
// secret box — can re-encrypt and set c.PasswordCiphertext itself; every
// other critical field is applied here directly. critical reports whether
// any of {host, port, protocol, username, password} actually changed,
// which resets health state to never_tested and clears diagnostics.
func ApplyPatch(c *Cluster, patch Patch) (critical, passwordChanged bool) {
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.DefaultDatabase != nil {
		c.DefaultDatabase = patch.DefaultDatabase
	}

	if patch.Host != nil && *patch.Host != c.Host {
		c.Host = *patch.Host
		critical = true
	}
	if patch.Port != nil && *patch.Port != c.Port {
		c.Port = *patch.Port
		critical = true
	}
	if patch.Protocol != nil && *patch.Protocol != c.Protocol {
		c.Protocol = *patch.Protocol
		critical = true
	}
	if patch.Username != nil && *patch.Username != c.Username {
		c.Username = *patch.Username
		critical = true
	}
	if patch.Password != nil {
		critical = true
		passwordChanged = true
	}

	if critical {
		resetHealth(c)
	}
	return critical, passwordChanged
}

func resetHealth(c *Cluster) {
	c.HealthStatus = HealthNeverTested
	c.LastTestedAt = nil
	c.LatencyMS = nil
	c.ServerVersion = nil
	c.DetectedCurrentUser = nil
	c.ErrorCode = nil
	c.ErrorMessage = nil
}

// ApplyProbeResult records the outcome of a connectivity probe — taken at
// testedAt — onto c, transitioning health_status to healthy or failed.
func ApplyProbeResult(c *Cluster, result clusterprobe.Result, testedAt time.Time) {
	c.LastTestedAt = &testedAt
	c.LatencyMS = result.LatencyMS

	if result.OK {
		c.HealthStatus = HealthHealthy
		c.ServerVersion = stringPtr(result.ServerVersion)
		c.DetectedCurrentUser = stringPtr(result.CurrentUser)
		c.ErrorCode = nil
		c.ErrorMessage = nil
		return
	}

	c.HealthStatus = HealthFailed
	c.ServerVersion = nil
	c.DetectedCurrentUser = nil
	c.ErrorCode = stringPtr(result.ErrorCode)
	c.ErrorMessage = stringPtr(result.Message)
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
