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

// The executor service: the internal job API that runs approved change
// plans against target clusters, with its own storage namespace.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jordigilh/govrbac/internal/config"
	"github.com/jordigilh/govrbac/internal/crypto"
	"github.com/jordigilh/govrbac/internal/database"
	"github.com/jordigilh/govrbac/internal/database/migrations"
	"github.com/jordigilh/govrbac/internal/httpapi"
	"github.com/jordigilh/govrbac/internal/log"
	"github.com/jordigilh/govrbac/pkg/chclient"
	"github.com/jordigilh/govrbac/pkg/executor"
)

const (
	statementTimeout = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "executor.yaml", "path to the service configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := log.New(log.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	logger = logger.WithName("executor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key, err := cfg.EncryptionKey()
	if err != nil {
		return err
	}
	secrets, err := crypto.NewSecretBox(key)
	if err != nil {
		return err
	}

	dbCfg := database.DefaultConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.User = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.Database = cfg.Database.Name
	dbCfg.SSLMode = cfg.Database.SSLMode
	dbCfg.LoadFromEnv()

	db, err := database.ConnectExecutor(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.ApplyExecutor(db.DB); err != nil {
		return err
	}

	pipeline := executor.NewPipeline(
		executor.NewStore(db),
		chclient.New(&http.Client{Timeout: statementTimeout}),
		secrets,
		logger.WithName("pipeline"),
	)

	router := httpapi.NewExecutorRouter(httpapi.ExecutorDeps{
		Pipeline:     pipeline,
		SharedSecret: cfg.Executor.SharedSecret,
		Log:          logger.WithName("http"),
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("executor service listening", "address", cfg.Server.Address)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
