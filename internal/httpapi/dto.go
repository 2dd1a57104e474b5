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
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
	"github.com/jordigilh/govrbac/pkg/sqltemplate"
)

var validate = validator.New()

// decodeAndValidate binds the JSON body into dst and runs struct
// validation. Failures surface as 422, the schema-validation status.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return schemaError("malformed JSON body: " + err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		return schemaError(err.Error())
	}
	return nil
}

func schemaError(msg string) *apperrors.AppError {
	err := apperrors.NewValidationError(msg)
	err.StatusCode = http.StatusUnprocessableEntity
	return err
}

// actorID extracts the authenticated principal's id. Operator identity
// is owned upstream; this surface only consumes the header the auth
// layer injects.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(urlParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid " + param)
	}
	return id, nil
}

type createClusterRequest struct {
	Name            string  `json:"name" validate:"required,max=255"`
	Host            string  `json:"host" validate:"required"`
	Port            int     `json:"port" validate:"required,min=1,max=65535"`
	Protocol        string  `json:"protocol" validate:"required,oneof=http https"`
	Username        string  `json:"username" validate:"required"`
	Password        string  `json:"password" validate:"required"`
	DefaultDatabase *string `json:"default_database"`
}

type patchClusterRequest struct {
	Name            *string `json:"name" validate:"omitempty,max=255"`
	Host            *string `json:"host"`
	Port            *int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Protocol        *string `json:"protocol" validate:"omitempty,oneof=http https"`
	Username        *string `json:"username"`
	Password        *string `json:"password"`
	DefaultDatabase *string `json:"default_database"`
}

type validateClusterRequest struct {
	Host            string  `json:"host" validate:"required"`
	Port            int     `json:"port" validate:"required,min=1,max=65535"`
	Protocol        string  `json:"protocol" validate:"required,oneof=http https"`
	Username        string  `json:"username" validate:"required"`
	Password        string  `json:"password" validate:"required"`
	DefaultDatabase *string `json:"default_database"`
}

// clusterResponse is the external view of a cluster. The password
// ciphertext never leaves the service.
type clusterResponse struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Host                string     `json:"host"`
	Port                int        `json:"port"`
	Protocol            string     `json:"protocol"`
	Username            string     `json:"username"`
	DefaultDatabase     *string    `json:"default_database,omitempty"`
	HealthStatus        string     `json:"health_status"`
	LastTestedAt        *time.Time `json:"last_tested_at,omitempty"`
	LatencyMS           *int64     `json:"latency_ms,omitempty"`
	ServerVersion       *string    `json:"server_version,omitempty"`
	DetectedCurrentUser *string    `json:"detected_current_user,omitempty"`
	ErrorCode           *string    `json:"error_code,omitempty"`
	ErrorMessage        *string    `json:"error_message,omitempty"`
	CreatedBy           int64      `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toClusterResponse(c *clusterregistry.Cluster) clusterResponse {
	return clusterResponse{
		ID:                  c.ID,
		Name:                c.Name,
		Host:                c.Host,
		Port:                c.Port,
		Protocol:            c.Protocol,
		Username:            c.Username,
		DefaultDatabase:     c.DefaultDatabase,
		HealthStatus:        c.HealthStatus,
		LastTestedAt:        c.LastTestedAt,
		LatencyMS:           c.LatencyMS,
		ServerVersion:       c.ServerVersion,
		DetectedCurrentUser: c.DetectedCurrentUser,
		ErrorCode:           c.ErrorCode,
		ErrorMessage:        c.ErrorMessage,
		CreatedBy:           c.CreatedBy,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

type operationRequest struct {
	OperationType string             `json:"operation_type" validate:"required"`
	Params        sqltemplate.Params `json:"params" validate:"required"`
}

type createProposalRequest struct {
	ClusterID   int64              `json:"cluster_id" validate:"required,min=1"`
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Reason      *string            `json:"reason"`
	Operations  []operationRequest `json:"operations" validate:"required,min=1,dive"`
}

type createLegacyProposalRequest struct {
	ClusterID  int64   `json:"cluster_id" validate:"required,min=1"`
	Type       string  `json:"type" validate:"required,oneof=grant_select revoke_select"`
	Reason     *string `json:"reason"`
	DBName     string  `json:"db_name" validate:"required"`
	TableName  string  `json:"table_name"`
	TargetType string  `json:"target_type" validate:"required,oneof=user role"`
	TargetName string  `json:"target_name" validate:"required"`
}

type reviewRequest struct {
	Comment *string `json:"comment"`
}

type collectSnapshotRequest struct {
	ClusterID int64 `json:"cluster_id" validate:"required,min=1"`
}
