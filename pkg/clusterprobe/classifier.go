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

import "strings"

// classifyRule is one entry of the ordered rule list; the first rule whose
// Match reports true wins, so order encodes priority — a TLS handshake
// failure during a timed-out dial must be classified TIMEOUT or TLS_ERROR
// consistently regardless of which substring appears first in the message.
type classifyRule struct {
	code        string
	match       func(msg string, statusCode int) bool
	suggestions []string
}

var classifyRules = []classifyRule{
	{
		code: "DNS_ERROR",
		match: containsAny(
			"name or service not known",
			"nodename nor servname",
			"getaddrinfo failed",
			"no address associated",
		),
		suggestions: []string{
			"Verify the cluster hostname is correct and resolvable from this network.",
			"Check that DNS records exist for the configured host.",
		},
	},
	{
		code: "CONNECTION_REFUSED",
		match: containsAny(
			"connection refused",
			"connect call failed",
		),
		suggestions: []string{
			"Verify the cluster is running and listening on the configured port.",
			"Check firewall rules between this service and the cluster.",
		},
	},
	{
		code: "TIMEOUT",
		match: containsAny(
			"timed out",
			"timeout",
		),
		suggestions: []string{
			"Verify network connectivity and latency to the cluster.",
			"Confirm the cluster is not overloaded or unresponsive.",
		},
	},
	{
		code: "TLS_ERROR",
		match: containsAny(
			"ssl",
			"tls",
			"certificate",
			"handshake",
		),
		suggestions: []string{
			"Verify the cluster's TLS certificate is valid and trusted.",
			"Confirm the configured protocol (http/https) matches the cluster's listener.",
		},
	},
	{
		code: "AUTH_FAILED",
		match: func(msg string, statusCode int) bool {
			if statusCode == 401 || statusCode == 403 {
				return true
			}
			return containsAny(
				"authentication",
				"wrong password",
				"incorrect user",
			)(msg, statusCode)
		},
		suggestions: []string{
			"Verify the configured username and password are correct.",
			"Confirm the user has not been dropped or locked on the cluster.",
		},
	},
	{
		code:  "PERMISSION_DENIED",
		match: containsAny("access denied", "not enough privileges"),
		suggestions: []string{
			"Verify the configured user has the privileges required to connect.",
			"Check the cluster's RBAC grants for this user.",
		},
	},
}

var unknownSuggestions = []string{
	"Check the executor/governance service logs for the full error detail.",
	"Retry the connection test; if it persists, escalate to cluster operators.",
}

func containsAny(substrings ...string) func(string, int) bool {
	return func(msg string, _ int) bool {
		lower := strings.ToLower(msg)
		for _, s := range substrings {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// classify inspects message text (case-insensitively) and an optional HTTP
// status code, returning the first matching code/suggestions pair, or
// UNKNOWN if none match.
func classify(message string, statusCode int) (string, []string) {
	for _, rule := range classifyRules {
		if rule.match(message, statusCode) {
			return rule.code, rule.suggestions
		}
	}
	return "UNKNOWN", unknownSuggestions
}
