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
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"gorm.io/gorm"
)

// MigrationManager creates the tables of registered models and applies
// versioned migrations, recording each applied version.
type MigrationManager struct {
	db          *bun.DB
	gormDB      *gorm.DB
	useGorm     bool
	foreignKeys bool
	logger      Logger
	models      []SQLModel
	migrations  []MigrationItem
}

// Migration represents an applied migration record stored in the database.
type Migration struct {
	bun.BaseModel `bun:"table:ormbridge_migrations"`

	Version     string    `bun:"version,pk"`
	Name        string    `bun:"name"`
	AppliedAt   time.Time `bun:"applied_at"`
	Description string    `bun:"description"`
}

// MigrationFunc is a migration step executed within a transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes a single migration version with up/down functions.
// Versions run in ascending order: numerically when both versions are
// integers, so "2" runs before "10", and lexically otherwise.
type MigrationItem struct {
	Version     string
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// MigrationOption configures a MigrationManager.
type MigrationOption func(*MigrationManager)

// WithGorm creates tables through GORM AutoMigrate when use is true.
func WithGorm(db *gorm.DB, use bool) MigrationOption {
	return func(mm *MigrationManager) {
		mm.gormDB = db
		mm.useGorm = use && db != nil
	}
}

// WithForeignKeys makes bun emit foreign key constraints for belongs-to
// relations.
func WithForeignKeys(on bool) MigrationOption {
	return func(mm *MigrationManager) { mm.foreignKeys = on }
}

// WithModels replaces the registered models with models.
func WithModels(models ...SQLModel) MigrationOption {
	return func(mm *MigrationManager) { mm.models = models }
}

// WithMigrations adds versioned migrations applied after table creation.
func WithMigrations(items ...MigrationItem) MigrationOption {
	return func(mm *MigrationManager) { mm.migrations = append(mm.migrations, items...) }
}

// NewMigrationManager constructs a MigrationManager over the registered models.
func NewMigrationManager(db *bun.DB, logger Logger, opts ...MigrationOption) *MigrationManager {
	mm := &MigrationManager{
		db:     db,
		logger: logger,
		models: GetRegisteredModels(),
	}
	for _, opt := range opts {
		opt(mm)
	}
	if mm.logger == nil {
		mm.logger = GetLogger()
	}
	return mm
}

// RunMigrations creates missing tables for every model, then executes the
// versioned migrations not applied yet in ascending version order.
func (mm *MigrationManager) RunMigrations(ctx context.Context) error {
	if mm.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, ok := os.LookupEnv("BUNDEBUG_MIGRATION"); !ok {
		EnableBunSqlSilent(true)
		defer EnableBunSqlSilent(false)
	}

	if err := mm.createMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	if err := mm.CreateTables(ctx); err != nil {
		return err
	}

	migrations := make([]MigrationItem, len(mm.migrations))
	copy(migrations, mm.migrations)
	sort.SliceStable(migrations, func(i, j int) bool {
		return versionLess(migrations[i].Version, migrations[j].Version)
	})
	for _, migration := range migrations {
		if err := mm.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
		}
	}

	mm.logger.Info("Database migrations completed!", "models", len(mm.models), "migrations", len(migrations))
	return nil
}

func (mm *MigrationManager) createMigrationTable(ctx context.Context) error {
	_, err := mm.db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// CreateTables creates the table of each model unless it exists.
func (mm *MigrationManager) CreateTables(ctx context.Context) error {
	models := instances(mm.models)
	if len(models) == 0 {
		return nil
	}
	if mm.useGorm {
		if err := mm.gormDB.WithContext(ctx).AutoMigrate(models...); err != nil {
			return fmt.Errorf("failed to migrate tables: %w", err)
		}
		return nil
	}
	return mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range models {
			q := tx.NewCreateTable().Model(model).IfNotExists()
			if mm.foreignKeys {
				q = q.WithForeignKeys()
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}
		return nil
	})
}

func (mm *MigrationManager) isApplied(ctx context.Context, version string) (bool, error) {
	return mm.db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", version).
		Exists(ctx)
}

func (mm *MigrationManager) runMigration(ctx context.Context, migration MigrationItem) error {
	applied, err := mm.isApplied(ctx, migration.Version)
	if err != nil || applied {
		return err
	}
	if migration.Up == nil {
		return fmt.Errorf("migration %s has no up step", migration.Version)
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := migration.Up(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&Migration{
				Version:     migration.Version,
				Name:        migration.Name,
				AppliedAt:   time.Now(),
				Description: migration.Description,
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	return nil
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *MigrationManager) GetAppliedMigrations(ctx context.Context) ([]Migration, error) {
	var migrations []Migration
	err := mm.db.NewSelect().
		Model(&migrations).
		Scan(ctx)
	sort.SliceStable(migrations, func(i, j int) bool {
		return versionLess(migrations[i].Version, migrations[j].Version)
	})
	return migrations, err
}

func versionLess(a, b string) bool {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil && x != y {
		return x < y
	}
	return a < b
}

// RollbackMigration runs the down step of an applied migration and removes
// its record.
func (mm *MigrationManager) RollbackMigration(ctx context.Context, version string) error {
	var item *MigrationItem
	for i := range mm.migrations {
		if mm.migrations[i].Version == version {
			item = &mm.migrations[i]
			break
		}
	}
	if item == nil {
		return fmt.Errorf("unknown migration %s", version)
	}
	if item.Down == nil {
		return fmt.Errorf("migration %s has no down step", version)
	}
	applied, err := mm.isApplied(ctx, version)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("migration %s is not applied", version)
	}

	err = mm.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := item.Down(ctx, tx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*Migration)(nil)).
			Where("version = ?", version).
			Exec(ctx)
		return err
	})
	if err != nil {
		return err
	}
	mm.logger.Info("Migration rolled back", "version", version, "name", item.Name)
	return nil
}
