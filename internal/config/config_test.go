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

package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
server:
  address: ":9090"
  read_timeout: 20s
  write_timeout: 20s

database:
  host: "db.internal"
  port: 5433
  user: "governance"
  name: "governance_prod"
  ssl_mode: "require"

executor:
  base_url: "http://executor.internal:8090"
  rpc_timeout: 45s

logging:
  level: "debug"
  format: "console"
`
				Expect(os.WriteFile(configFile, []byte(validConfig), 0644)).To(Succeed())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Server.Address).To(Equal(":9090"))
				Expect(cfg.Server.ReadTimeout).To(Equal(20 * time.Second))

				Expect(cfg.Database.Host).To(Equal("db.internal"))
				Expect(cfg.Database.Port).To(Equal(5433))
				Expect(cfg.Database.User).To(Equal("governance"))
				Expect(cfg.Database.SSLMode).To(Equal("require"))

				Expect(cfg.Executor.BaseURL).To(Equal("http://executor.internal:8090"))
				Expect(cfg.Executor.RPCTimeout).To(Equal(45 * time.Second))

				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Logging.Format).To(Equal("console"))
			})
		})

		Context("when the file does not exist", func() {
			It("falls back to defaults without error", func() {
				cfg, err := Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":8080"))
				Expect(cfg.Database.Name).To(Equal("govrbac"))
			})
		})

		Context("when an environment variable overrides the file", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(configFile, []byte("database:\n  host: file-host\n"), 0644)).To(Succeed())
				os.Setenv("DB_HOST", "env-host")
			})

			AfterEach(func() {
				os.Unsetenv("DB_HOST")
			})

			It("prefers the environment value", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Database.Host).To(Equal("env-host"))
			})
		})
	})

	Describe("EncryptionKey", func() {
		AfterEach(func() {
			os.Unsetenv("GOVRBAC_ENCRYPTION_KEY")
		})

		It("reads the key from the configured env var", func() {
			os.Setenv("GOVRBAC_ENCRYPTION_KEY", "deadbeef")
			cfg := Default()
			key, err := cfg.EncryptionKey()
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("deadbeef"))
		})

		It("errors when the env var is unset", func() {
			cfg := Default()
			_, err := cfg.EncryptionKey()
			Expect(err).To(HaveOccurred())
		})
	})
})
