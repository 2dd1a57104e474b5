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

// The governance service: cluster registry, proposals, snapshots, the
// explorer read APIs, and the orchestration boundary to the executor.
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

	"go.uber.org/zap/zapcore"

	"github.com/jordigilh/govrbac/internal/config"
	"github.com/jordigilh/govrbac/internal/crypto"
	"github.com/jordigilh/govrbac/internal/database"
	"github.com/jordigilh/govrbac/internal/database/migrations"
	"github.com/jordigilh/govrbac/internal/httpapi"
	"github.com/jordigilh/govrbac/internal/log"
	"github.com/jordigilh/govrbac/pkg/chclient"
	"github.com/jordigilh/govrbac/pkg/clusterprobe"
	"github.com/jordigilh/govrbac/pkg/clusterregistry"
	"github.com/jordigilh/govrbac/pkg/entityhistory"
	"github.com/jordigilh/govrbac/pkg/orchestration"
	"github.com/jordigilh/govrbac/pkg/proposal"
	"github.com/jordigilh/govrbac/pkg/rbaccollector"
)

const (
	probeTimeout     = 15 * time.Second
	collectorTimeout = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the service configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, level, err := log.NewReloadable(log.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	logger = logger.WithName("governance")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.Watch(ctx, *configPath, logger, func(fresh *config.Config) {
		var parsed zapcore.Level
		if err := parsed.UnmarshalText([]byte(fresh.Logging.Level)); err == nil {
			level.SetLevel(parsed)
		}
	}); err != nil {
		logger.Error(err, "config watch unavailable, continuing without live reload")
	}

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

	db, err := database.Connect(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.ApplyGovernance(db.DB); err != nil {
		return err
	}

	clusters := clusterregistry.NewRepository(db)
	snapshots := rbaccollector.NewRepository(db)
	proposals := proposal.NewRepository(db)
	history := entityhistory.NewRepository(db)

	collector := rbaccollector.NewCollector(
		chclient.New(&http.Client{Timeout: collectorTimeout}),
		logger.WithName("collector"),
	)
	prober := clusterprobe.NewProber(probeTimeout)
	engine := proposal.NewEngine(proposals, clusters, logger.WithName("proposals"))

	execClient := orchestration.NewExecutorClient(
		cfg.Executor.BaseURL,
		cfg.Executor.SharedSecret,
		cfg.Executor.RPCTimeout,
		logger.WithName("executor-rpc"),
	)
	orch := orchestration.NewOrchestrator(proposals, clusters, history, execClient, logger.WithName("orchestration"))

	router := httpapi.NewGovernanceRouter(httpapi.GovernanceDeps{
		Clusters:     clusters,
		Prober:       prober,
		Secrets:      secrets,
		Snapshots:    snapshots,
		Collector:    collector,
		Proposals:    proposals,
		Engine:       engine,
		Orchestrator: orch,
		Jobs:         execClient,
		History:      history,
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
		logger.Info("governance service listening", "address", cfg.Server.Address)
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
