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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets" gorm:"-"`

	ID   int64  `bun:"id,pk,autoincrement" gorm:"primaryKey"`
	Name string `bun:"name,notnull" gorm:"not null"`
}

func (widget) TableName() string { return "widgets" }

type gadget struct {
	bun.BaseModel `bun:"table:gadgets"`

	ID int64 `bun:"id,pk,autoincrement"`
}

func sqliteConfig(backend string) *ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.Backend = backend
	cfg.DSN = ":memory:"
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.HealthCheckInterval = 0
	return cfg
}

func connect(t *testing.T, backend string) AbstractDatabaseManager {
	t.Helper()
	m := NewDatabaseManager(sqliteConfig(backend), WithManagerLogger(&memLogger{}))
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Disconnect() })
	return m
}

func TestValidateConnectionConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  ConnectionConfig
		ok   bool
	}{
		{"sqlite bun", ConnectionConfig{Type: "sqlite", Backend: BackendBun}, true},
		{"postgres pgx", ConnectionConfig{Type: "postgres", Backend: BackendGorm, Driver: DriverPGX}, true},
		{"unknown type", ConnectionConfig{Type: "oracle", Backend: BackendBun}, false},
		{"unknown backend", ConnectionConfig{Type: "mysql", Backend: "ent"}, false},
		{"unknown driver", ConnectionConfig{Type: "postgres", Backend: BackendBun, Driver: "odbc"}, false},
		{"driver on mysql", ConnectionConfig{Type: "mysql", Backend: BackendBun, Driver: DriverPQ}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConnectionConfig(&tc.cfg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFactoryCreateFromConfig(t *testing.T) {
	f := NewDatabaseFactory()
	_, err := f.CreateFromConfig(nil)
	assert.Error(t, err)
	assert.Nil(t, f.GetDB())
	assert.False(t, f.GetHealthStatus(context.Background()).Healthy)
	assert.Error(t, f.InitializeDatabase(context.Background(), false))

	t.Setenv("DB_BACKEND", BackendGorm)
	t.Setenv("DB_MAX_OPEN_CONNS", "1")
	cfg := sqliteConfig("")
	m, err := f.CreateFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, BackendGorm, m.Backend())
	assert.Equal(t, 1, cfg.MaxOpenConns)

	require.NoError(t, f.InitializeDatabase(context.Background(), false))
	t.Cleanup(func() { _ = f.Close() })
	assert.NotNil(t, f.GetDB())
	assert.NotNil(t, f.GetGormDB())
	assert.Equal(t, 1, f.GetStats().MaxOpenConns)
}

func TestManagerDSN(t *testing.T) {
	m := NewDatabaseManager(&ConnectionConfig{Type: "sqlite", DBName: "app"}).(*defaultDatabaseManager)
	assert.Equal(t, BackendBun, m.Backend())
	assert.Equal(t, "app.db", m.sqliteDSN())
	m.config.DBName = "file:app?mode=memory"
	assert.Equal(t, "file:app?mode=memory", m.sqliteDSN())

	m.config = &ConnectionConfig{Type: "postgres", Username: "u", Password: "p", Host: "h", Port: 5432, DBName: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable&connect_timeout=0", m.postgresDSN())
	m.config.DSN = "postgres://override"
	assert.Equal(t, "postgres://override", m.postgresDSN())

	m.config = &ConnectionConfig{Type: "postgres", Driver: "odbc"}
	_, _, err := m.createConnection()
	assert.Error(t, err)

	m.config = &ConnectionConfig{Type: "oracle"}
	assert.Error(t, m.Connect(context.Background()))
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := connect(t, BackendBun)

	require.NotNil(t, m.GetDB())
	require.NotNil(t, m.GetGormDB())
	assert.Same(t, m.GetSQLDB(), m.GetDB().DB)
	require.NoError(t, m.Ping(ctx))

	status := m.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, status.MaxOpenConns)

	sqlDB, err := m.GetGormDB().DB()
	require.NoError(t, err)
	assert.Same(t, m.GetSQLDB(), sqlDB)

	require.NoError(t, m.Reconnect(ctx))
	require.NoError(t, m.Ping(ctx))

	require.NoError(t, m.Disconnect())
	assert.Nil(t, m.GetDB())
	assert.Nil(t, m.GetGormDB())
	assert.Error(t, m.Ping(ctx))
	assert.False(t, m.HealthCheck(ctx).Healthy)
	assert.Error(t, m.RunMigrations(ctx))
}

func TestMigrations(t *testing.T) {
	for _, backend := range []string{BackendBun, BackendGorm} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			m := connect(t, backend)
			up, down := 0, 0
			item := MigrationItem{
				Version: "002",
				Name:    "gadgets",
				Up: func(ctx context.Context, db bun.IDB) error {
					up++
					_, err := db.NewCreateTable().Model((*gadget)(nil)).Exec(ctx)
					return err
				},
				Down: func(ctx context.Context, db bun.IDB) error {
					down++
					_, err := db.NewDropTable().Model((*gadget)(nil)).IfExists().Exec(ctx)
					return err
				},
			}
			failing := MigrationItem{
				Version: "003",
				Up:      func(context.Context, bun.IDB) error { return errors.New("boom") },
			}
			mm := NewMigrationManager(m.GetDB(), &memLogger{},
				WithGorm(m.GetGormDB(), backend == BackendGorm),
				WithModels(NewModelAdapter(&widget{}, 0)),
				WithMigrations(item),
			)

			require.NoError(t, mm.RunMigrations(ctx))
			require.NoError(t, mm.RunMigrations(ctx))
			assert.Equal(t, 1, up)

			migrator := m.GetGormDB().Migrator()
			assert.True(t, migrator.HasTable("widgets"))
			assert.True(t, migrator.HasTable("gadgets"))

			applied, err := mm.GetAppliedMigrations(ctx)
			require.NoError(t, err)
			require.Len(t, applied, 1)
			assert.Equal(t, "002", applied[0].Version)

			require.NoError(t, mm.RollbackMigration(ctx, "002"))
			assert.Equal(t, 1, down)
			assert.False(t, migrator.HasTable("gadgets"))
			assert.Error(t, mm.RollbackMigration(ctx, "002"))
			assert.Error(t, mm.RollbackMigration(ctx, "999"))

			bad := NewMigrationManager(m.GetDB(), &memLogger{}, WithModels(), WithMigrations(failing))
			assert.Error(t, bad.RunMigrations(ctx))
			applied, err = bad.GetAppliedMigrations(ctx)
			require.NoError(t, err)
			assert.Empty(t, applied)
		})
	}
}

func TestMigrationsRunInNumericOrder(t *testing.T) {
	ctx := context.Background()
	m := connect(t, BackendBun)
	var order []string
	step := func(version string) MigrationItem {
		return MigrationItem{
			Version: version,
			Up: func(context.Context, bun.IDB) error {
				order = append(order, version)
				return nil
			},
		}
	}
	mm := NewMigrationManager(m.GetDB(), &memLogger{}, WithModels(),
		WithMigrations(step("10"), step("2"), step("b"), step("1"), step("a")))

	require.NoError(t, mm.RunMigrations(ctx))
	assert.Equal(t, []string{"1", "2", "10", "a", "b"}, order)

	applied, err := mm.GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, order, appliedVersions(applied))
}

func appliedVersions(applied []Migration) []string {
	out := make([]string, len(applied))
	for i, a := range applied {
		out[i] = a.Version
	}
	return out
}

func TestVersionLess(t *testing.T) {
	assert.True(t, versionLess("2", "10"))
	assert.False(t, versionLess("10", "2"))
	assert.True(t, versionLess("002", "10"))
	assert.True(t, versionLess("10", "a"))
	assert.True(t, versionLess("20240101_init", "20240102_users"))
	assert.False(t, versionLess("7", "7"))
}

func TestGlobalDatabase(t *testing.T) {
	ctx := context.Background()
	ResetRegisteredModels()
	t.Cleanup(ResetRegisteredModels)
	RegisteredModel(NewModelAdapter(&widget{}, 0))

	_, err := InitDB(nil)
	assert.Error(t, err)
	assert.Error(t, RunMigrations(ctx))
	assert.False(t, GetHealthStatus(ctx).Healthy)

	cfg := &Config{
		ConnectionConfig:  *sqliteConfig(BackendBun),
		DataMigrateConfig: DataMigrateConfig{EnableMigrateOnStartup: true},
	}
	m, err := InitDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDB() })

	assert.Same(t, m, GetDatabaseManager())
	assert.Same(t, cfg, GetConfig())
	assert.NotNil(t, GetDB())
	assert.NotNil(t, GetGormDB())
	assert.True(t, GetHealthStatus(ctx).Healthy)
	assert.Equal(t, 1, GetDatabaseStats().MaxOpenConns)
	assert.True(t, GetGormDB().Migrator().HasTable("widgets"))
	require.NoError(t, RunMigrations(ctx))

	second, err := InitDatabaseWithOptions(&Config{ConnectionConfig: *sqliteConfig(BackendGorm)}, false)
	require.NoError(t, err)
	assert.Same(t, second, GetDatabaseManager())
	assert.Nil(t, m.GetDB())

	require.NoError(t, CloseDB())
	assert.Nil(t, GetDB())
	assert.Nil(t, GetConfig())
}
