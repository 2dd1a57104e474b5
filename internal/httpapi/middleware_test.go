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

package httpapi

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/govrbac/internal/log"
	"github.com/jordigilh/govrbac/pkg/orchestration"
)

var _ = Describe("sharedSecretAuth", func() {
	var handler http.Handler

	BeforeEach(func() {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler = sharedSecretAuth("s3cret", log.NewNop())(next)
	})

	It("passes requests carrying the shared key", func() {
		req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
		req.Header.Set(orchestration.AuthHeader, "s3cret")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("rejects a wrong key with 403", func() {
		req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
		req.Header.Set(orchestration.AuthHeader, "guess")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(rec.Body.String()).To(ContainSubstring("invalid executor key"))
	})

	It("rejects a missing key with 403", func() {
		req := httptest.NewRequest(http.MethodPost, "/jobs", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})
})
