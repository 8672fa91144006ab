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

// Package ormbridge builds repositories over the ORM a database manager is
// configured for. Callers depend on repository.Repository and can switch
// between bun and GORM through configuration.
package ormbridge

import (
	"errors"
	"fmt"

	"github.com/tomoncle/ormbridge/database"
	"github.com/tomoncle/ormbridge/repository"
	"github.com/tomoncle/ormbridge/repository/bunrepo"
	"github.com/tomoncle/ormbridge/repository/gormrepo"
)

var (
	// ErrUnsupportedBackend is returned for a backend other than bun or gorm.
	ErrUnsupportedBackend = errors.New("unsupported backend")
	// ErrNotInitialized is returned when no database manager is available.
	ErrNotInitialized = errors.New("database not initialized")
)

// NewRepository returns a repository for T on the backend m reports.
// m must be connected.
func NewRepository[T any](m database.AbstractDatabaseManager, cfg repository.Config) (repository.Repository[T], error) {
	if m == nil {
		return nil, ErrNotInitialized
	}
	switch backend := m.Backend(); backend {
	case database.BackendBun, "":
		db := m.GetDB()
		if db == nil {
			return nil, ErrNotInitialized
		}
		repo, err := bunrepo.New[T](db, cfg)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case database.BackendGorm:
		db := m.GetGormDB()
		if db == nil {
			return nil, ErrNotInitialized
		}
		repo, err := gormrepo.New[T](db, cfg)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, backend)
	}
}
