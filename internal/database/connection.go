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

package database

import (
	"context"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

// Connect opens a pooled *sqlx.DB against Postgres via the pgx stdlib
// driver and applies c's pool sizing.
func Connect(ctx context.Context, c *Config) (*sqlx.DB, error) {
	return open(ctx, "pgx", c)
}

// ConnectExecutor opens the executor's own pool via the lib/pq driver,
// keeping the executor's storage namespace on an independent driver and
// pool from the governance service.
func ConnectExecutor(ctx context.Context, c *Config) (*sqlx.DB, error) {
	return open(ctx, "postgres", c)
}

func open(ctx context.Context, driver string, c *Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, c.DSN())
	if err != nil {
		return nil, apperrors.NewDatabaseError("open", err)
	}

	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, apperrors.NewDatabaseError("ping", err)
	}

	return db, nil
}
