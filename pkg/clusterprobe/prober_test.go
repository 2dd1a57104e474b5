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
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Prober", func() {
	var (
		server *httptest.Server
		prober *Prober
	)

	AfterEach(func() {
		if server != nil {
			server.Close()
		}
	})

	newConfigFor := func(server *httptest.Server) Config {
		u, err := url.Parse(server.URL)
		Expect(err).NotTo(HaveOccurred())
		host, portStr, err := net.SplitHostPort(u.Host)
		Expect(err).NotTo(HaveOccurred())
		port, err := strconv.Atoi(portStr)
		Expect(err).NotTo(HaveOccurred())
		return Config{
			Protocol: "http",
			Host:     host,
			Port:     port,
			Username: "default",
			Password: "secret",
		}
	}

	Context("when the cluster responds successfully", func() {
		BeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				query := r.URL.Query().Get("query")
				switch {
				case strings.Contains(query, "SELECT 1"):
					fmt.Fprint(w, "1")
				case strings.Contains(query, "version()"):
					fmt.Fprint(w, "24.3.1.1")
				case strings.Contains(query, "currentUser()"):
					fmt.Fprint(w, "default")
				}
			}))
			prober = NewProber(5 * time.Second)
		})

		It("reports ok with latency and best-effort metadata", func() {
			result := prober.Test(context.Background(), "cluster-1", newConfigFor(server))
			Expect(result.OK).To(BeTrue())
			Expect(result.ErrorCode).To(BeEmpty())
			Expect(result.LatencyMS).NotTo(BeNil())
			Expect(*result.LatencyMS).To(BeNumerically(">=", 0))
			Expect(result.ServerVersion).To(Equal("24.3.1.1"))
			Expect(result.CurrentUser).To(Equal("default"))
		})
	})

	Context("when the cluster returns 403", func() {
		BeforeEach(func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, "denied")
			}))
			prober = NewProber(5 * time.Second)
		})

		It("classifies the failure as AUTH_FAILED", func() {
			result := prober.Test(context.Background(), "cluster-2", newConfigFor(server))
			Expect(result.OK).To(BeFalse())
			Expect(result.ErrorCode).To(Equal("AUTH_FAILED"))
			Expect(result.Suggestions).NotTo(BeEmpty())
		})
	})

	Context("when the cluster is unreachable", func() {
		BeforeEach(func() {
			prober = NewProber(2 * time.Second)
		})

		It("returns a non-ok result with a classified code", func() {
			cfg := Config{Protocol: "http", Host: "127.0.0.1", Port: 1, Username: "default", Password: "secret"}
			result := prober.Test(context.Background(), "cluster-3", cfg)
			Expect(result.OK).To(BeFalse())
			Expect(result.ErrorCode).NotTo(BeEmpty())
			Expect(result.RawError).NotTo(BeEmpty())
		})
	})
})
