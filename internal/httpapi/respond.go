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

// Package httpapi mounts the governance and executor HTTP surfaces on
// chi routers. Handlers stay thin: decode, validate, call a domain
// package, respond. No business rules live here.
package httpapi

import (
	"encoding/json"
	"net/http"

	stderrors "errors"

	"github.com/go-logr/logr"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its HTTP status and a code+message body. No
// stack traces cross the boundary; non-AppError values collapse to a
// generic 500.
func writeError(w http.ResponseWriter, log logr.Logger, err error) {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		log.Error(err, "unclassified handler error")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: errorDetail{Type: "internal", Message: "internal error"},
		})
		return
	}
	if appErr.StatusCode >= 500 {
		log.Error(err, "handler error", "type", appErr.Type)
	}
	writeJSON(w, appErr.StatusCode, errorBody{
		Error: errorDetail{
			Type:    string(appErr.Type),
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}
