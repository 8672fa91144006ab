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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.ConnectionConfig.Backend, cfg.ConnectionConfig.Backend)
	assert.Equal(t, def.ConnectionConfig.MaxOpenConns, cfg.ConnectionConfig.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.ConnectionConfig.ConnMaxLifetime)
	assert.False(t, cfg.DataMigrateConfig.EnableMigrateOnStartup)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "database.yaml")
	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "postgres"
	cfg.ConnectionConfig.Backend = BackendGorm
	cfg.ConnectionConfig.Driver = DriverPGX
	cfg.ConnectionConfig.Host = "db.internal"
	cfg.ConnectionConfig.Port = 5432
	cfg.ConnectionConfig.SlowQueryTime = 250 * time.Millisecond
	cfg.DataMigrateConfig.EnableMigrateOnStartup = true

	require.NoError(t, SaveConfig(cfg, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connection_config:")
	assert.Contains(t, string(data), "backend: gorm")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	assert.Error(t, SaveConfig(nil, path))
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection_config:
  type: mysql
  host: file-host
  port: 3306
data_migrate_config:
  enable_foreign_key: true
`), 0o644))

	t.Setenv("DB_CONNECTION_CONFIG_HOST", "env-host")
	t.Setenv("DB_CONNECTION_CONFIG_MAX_OPEN_CONNS", "7")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.ConnectionConfig.Type)
	assert.Equal(t, "env-host", cfg.ConnectionConfig.Host)
	assert.Equal(t, 3306, cfg.ConnectionConfig.Port)
	assert.Equal(t, 7, cfg.ConnectionConfig.MaxOpenConns)
	assert.Equal(t, BackendBun, cfg.ConnectionConfig.Backend)
	assert.True(t, cfg.DataMigrateConfig.EnableForeignKey)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
