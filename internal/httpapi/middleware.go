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
	"crypto/subtle"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/jordigilh/govrbac/pkg/orchestration"
)

// sharedSecretAuth guards the executor's internal surface: the governance
// service signs every request with the shared key; anything else is 403.
func sharedSecretAuth(secret string, log logr.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(orchestration.AuthHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				log.V(1).Info("rejected request with invalid executor key", "path", r.URL.Path)
				writeJSON(w, http.StatusForbidden, errorBody{
					Error: errorDetail{Type: "auth", Message: "invalid executor key"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
