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

// Package log bridges zap to the logr.Logger interface so the rest of the
// repository depends only on logr, accepting an interface rather than a
// concrete logger.
package log

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the underlying zap sink.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// New builds a logr.Logger backed by zap, per Config.
func New(cfg Config) (logr.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// NewReloadable builds a logger plus the atomic level handle, so the
// config watcher can change verbosity at runtime without a restart.
func NewReloadable(cfg Config) (logr.Logger, zap.AtomicLevel, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Level))
	atomic := zap.NewAtomicLevelAt(level)
	zapCfg.Level = atomic

	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Logger{}, atomic, err
	}
	return zapr.NewLogger(zl), atomic, nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() logr.Logger {
	return zapr.NewLogger(zap.NewNop())
}
