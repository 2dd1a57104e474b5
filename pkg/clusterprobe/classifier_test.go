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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("classify", func() {
	DescribeTable("ordered rule matching",
		func(message string, statusCode int, expectedCode string) {
			code, suggestions := classify(message, statusCode)
			Expect(code).To(Equal(expectedCode))
			Expect(suggestions).NotTo(BeEmpty())
		},
		Entry("DNS failure phrasing", "Name or service not known", 0, "DNS_ERROR"),
		Entry("macOS DNS failure phrasing", "nodename nor servname provided", 0, "DNS_ERROR"),
		Entry("connection refused", "dial tcp: connection refused", 0, "CONNECTION_REFUSED"),
		Entry("timeout", "context deadline exceeded: i/o timeout", 0, "TIMEOUT"),
		Entry("tls handshake failure", "remote error: tls: handshake failure", 0, "TLS_ERROR"),
		Entry("certificate error", "x509: certificate signed by unknown authority", 0, "TLS_ERROR"),
		Entry("HTTP 401 with no message hint", "unexpected response", 401, "AUTH_FAILED"),
		Entry("HTTP 403 with no message hint", "unexpected response", 403, "AUTH_FAILED"),
		Entry("authentication message without 401/403", "Authentication failed for user", 0, "AUTH_FAILED"),
		Entry("permission denied", "Code: 497. DB::Exception: Not enough privileges", 0, "PERMISSION_DENIED"),
		Entry("access denied", "Access denied for user", 0, "PERMISSION_DENIED"),
		Entry("unrecognized message falls back to UNKNOWN", "something exploded", 0, "UNKNOWN"),
	)

	It("is case-insensitive", func() {
		code, _ := classify("CONNECTION REFUSED", 0)
		Expect(code).To(Equal("CONNECTION_REFUSED"))
	})

	It("prioritizes DNS_ERROR over TIMEOUT when both phrases co-occur", func() {
		code, _ := classify("getaddrinfo failed, operation timed out", 0)
		Expect(code).To(Equal("DNS_ERROR"))
	})
})
