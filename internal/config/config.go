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

// Package config loads the governance/executor service configuration from
// a YAML file, then overlays environment variables, unified into a single
// Load for both services.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/jordigilh/govrbac/internal/errors"
)

type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type ExecutorConfig struct {
	BaseURL      string        `yaml:"base_url"`
	SharedSecret string        `yaml:"shared_secret"`
	RPCTimeout   time.Duration `yaml:"rpc_timeout"`
}

type CryptoConfig struct {
	KeyEnvVar string `yaml:"key_env_var"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Executor ExecutorConfig `yaml:"executor"`
	Crypto   CryptoConfig   `yaml:"crypto"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the baseline configuration used when a field is absent
// from both the file and the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "govrbac_user",
			Name:    "govrbac",
			SSLMode: "disable",
		},
		Executor: ExecutorConfig{
			RPCTimeout: 60 * time.Second,
		},
		Crypto: CryptoConfig{
			KeyEnvVar: "GOVRBAC_ENCRYPTION_KEY",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (if it exists) over the defaults, then overlays
// environment variables, file-then-env precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInternal, "failed to read config file %s", path)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInternal, "failed to parse config file %s", path)
		}
	}

	cfg.loadFromEnv()
	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SERVER_ADDRESS"); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_SSL_MODE"); v != "" {
		c.Database.SSLMode = v
	}
	if v := os.Getenv("EXECUTOR_BASE_URL"); v != "" {
		c.Executor.BaseURL = v
	}
	if v := os.Getenv("EXECUTOR_SHARED_SECRET"); v != "" {
		c.Executor.SharedSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// EncryptionKey reads the hex AEAD key named by Crypto.KeyEnvVar.
func (c *Config) EncryptionKey() (string, error) {
	key := os.Getenv(c.Crypto.KeyEnvVar)
	if key == "" {
		return "", apperrors.Newf(apperrors.ErrorTypeInternal, "environment variable %s is not set", c.Crypto.KeyEnvVar)
	}
	return key, nil
}
