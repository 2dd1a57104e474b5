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

// Package migrations drives schema evolution with goose instead of ad-hoc
// "ALTER TABLE ADD COLUMN" startup loops — each change is a numbered,
// reversible SQL file.
package migrations

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed governance/*.sql
var governanceFS embed.FS

//go:embed executor/*.sql
var executorFS embed.FS

// ApplyGovernance migrates the governance service's schema (clusters,
// proposals, proposal_operations, proposal_reviews, snapshot_*,
// entity_history) to the latest version.
func ApplyGovernance(db *sql.DB) error {
	return apply(db, governanceFS, "governance")
}

// ApplyExecutor migrates the executor's own schema (jobs, job_steps) — a
// storage namespace the governance service never writes to directly.
func ApplyExecutor(db *sql.DB) error {
	return apply(db, executorFS, "executor")
}

func apply(db *sql.DB, fs embed.FS, dir string) error {
	goose.SetBaseFS(fs)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, dir)
}
