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

package repository

import (
	"context"

	"github.com/tomoncle/ormbridge/filter"
)

// Backend names.
const (
	BackendBun  = "bun"
	BackendGorm = "gorm"
)

// CrudRepository defines primary-key based CRUD operations.
type CrudRepository[T any] interface {
	Create(ctx context.Context, entity *T, opts ...Option) (*T, error)

	CreateMany(ctx context.Context, entities []*T, opts ...Option) error

	GetByPK(ctx context.Context, pk any, opts ...Option) (*T, error)

	All(ctx context.Context, opts ...Option) ([]*T, error)

	AllByPKs(ctx context.Context, pks []any, opts ...Option) ([]*T, error)

	Update(ctx context.Context, pk any, values map[string]any, opts ...Option) (int64, error)

	MultiUpdate(ctx context.Context, pks []any, values map[string]any, opts ...Option) (int64, error)

	Delete(ctx context.Context, pk any, opts ...Option) (int64, error)

	Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities []*T, opts ...Option) error
}

// FieldRepository defines lookups on a single column equality.
type FieldRepository[T any] interface {
	GetByField(ctx context.Context, name string, value any, opts ...Option) (*T, error)
	AllByField(ctx context.Context, name string, value any, opts ...Option) ([]*T, error)
	DeleteByField(ctx context.Context, name string, value any, opts ...Option) (int64, error)
	ExistsByField(ctx context.Context, name string, value any, opts ...Option) (bool, error)
	CountByField(ctx context.Context, name string, value any, opts ...Option) (int, error)
}

// FilterRepository defines lookups on filter trees.
type FilterRepository[T any] interface {
	GetByFilters(ctx context.Context, expr filter.Expression, opts ...Option) (*T, error)
	AllByFilters(ctx context.Context, expr filter.Expression, opts ...Option) ([]*T, error)
	ExistsByFilters(ctx context.Context, expr filter.Expression, opts ...Option) (bool, error)
	CountByFilters(ctx context.Context, expr filter.Expression, opts ...Option) (int, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *PageRequest, opts ...Option) (*Pagination[T], error)
}

// TransactionRepository runs work inside a backend transaction.
type TransactionRepository[T any] interface {
	// WithTx calls fn with a repository bound to a new transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository[T]) error) error
}

// Repository combines every operation over one model type.
type Repository[T any] interface {
	CrudRepository[T]
	FieldRepository[T]
	FilterRepository[T]
	PageQueryRepository[T]
	TransactionRepository[T]
	// Backend returns BackendBun or BackendGorm.
	Backend() string
	Config() Config
}

// SessionFactory opens a session of type S, calls fn with it and closes
// it afterwards. Repositories use it for calls made without WithSession.
type SessionFactory[S any] func(ctx context.Context, fn func(ctx context.Context, session S) error) error
