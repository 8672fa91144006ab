/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment variables read by LoadConfig, e.g.
// DB_CONNECTION_CONFIG_HOST overrides connection_config.host.
const EnvPrefix = "DB"

// DefaultConfig returns the default connection settings with migrations
// disabled.
func DefaultConfig() *Config {
	return &Config{ConnectionConfig: *DefaultConnectionConfig()}
}

func setDefaults(v *viper.Viper) {
	def := DefaultConnectionConfig()
	defaults := map[string]any{
		"type":                  def.Type,
		"backend":               def.Backend,
		"driver":                def.Driver,
		"dsn":                   def.DSN,
		"host":                  def.Host,
		"port":                  def.Port,
		"username":              def.Username,
		"password":              def.Password,
		"dbname":                def.DBName,
		"sslmode":               def.SSLMode,
		"max_idle_conns":        def.MaxIdleConns,
		"max_open_conns":        def.MaxOpenConns,
		"conn_max_lifetime":     def.ConnMaxLifetime,
		"conn_max_idle_time":    def.ConnMaxIdleTime,
		"connect_timeout":       def.ConnectTimeout,
		"read_timeout":          def.ReadTimeout,
		"write_timeout":         def.WriteTimeout,
		"enable_reconnect":      def.EnableReconnect,
		"reconnect_interval":    def.ReconnectInterval,
		"max_reconnect_tries":   def.MaxReconnectTries,
		"health_check_interval": def.HealthCheckInterval,
		"enable_query_log":      def.EnableQueryLog,
		"slow_query_time":       def.SlowQueryTime,
		"charset":               def.Charset,
	}
	for k, val := range defaults {
		v.SetDefault("connection_config."+k, val)
	}
	v.SetDefault("data_migrate_config.enable_migrate_on_startup", false)
	v.SetDefault("data_migrate_config.enable_foreign_key", false)
}

// LoadConfig reads a YAML, JSON or TOML file, chosen by extension, over the
// defaults. Environment variables prefixed with EnvPrefix take precedence
// over file values. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
