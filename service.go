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

package ormbridge

import (
	"context"
	"sync"

	"github.com/tomoncle/ormbridge/database"
	"github.com/tomoncle/ormbridge/filter"
	"github.com/tomoncle/ormbridge/repository"
)

type Service[T any] interface {
	// Get returns a single entity by its primary key.
	Get(ctx context.Context, id any, opts ...repository.Option) (*T, error)

	// Find returns the first entity matching expr.
	Find(ctx context.Context, expr filter.Expression, opts ...repository.Option) (*T, error)

	// All returns all entities.
	All(ctx context.Context, opts ...repository.Option) ([]*T, error)

	// List returns entities matching expr, or all entities when expr is nil.
	List(ctx context.Context, expr filter.Expression, opts ...repository.Option) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *repository.PageRequest, opts ...repository.Option) (*repository.Pagination[T], error)

	Count(ctx context.Context, expr filter.Expression, opts ...repository.Option) (int, error)

	Exists(ctx context.Context, expr filter.Expression, opts ...repository.Option) (bool, error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error

	// Update sets values on the entity with the given primary key.
	Update(ctx context.Context, id any, values map[string]any, opts ...repository.Option) (int64, error)

	UpdateMany(ctx context.Context, ids []any, values map[string]any, opts ...repository.Option) (int64, error)

	// Delete removes an entity by its primary key.
	Delete(ctx context.Context, id any, opts ...repository.Option) (int64, error)

	// Transaction runs fn with a repository bound to one transaction.
	Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error

	// Repository returns the underlying repository.
	Repository() (repository.Repository[T], error)
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	manager database.AbstractDatabaseManager
	config  repository.Config
}

// WithManager binds the service to m instead of the global manager.
func WithManager(m database.AbstractDatabaseManager) ServiceOption {
	return func(o *serviceOptions) { o.manager = m }
}

// WithRepositoryConfig sets the repository configuration.
func WithRepositoryConfig(cfg repository.Config) ServiceOption {
	return func(o *serviceOptions) { o.config = cfg }
}

type baseServiceImpl[T any] struct {
	opts  serviceOptions
	repo  repository.Repository[T]
	bound database.AbstractDatabaseManager
	mu    sync.Mutex
}

// NewService returns a Service whose repository is built on first use,
// from the global database manager unless WithManager is given. A service
// on the global manager rebuilds its repository after InitDB replaces it.
func NewService[T any](opts ...ServiceOption) Service[T] {
	s := &baseServiceImpl[T]{opts: serviceOptions{config: repository.DefaultConfig()}}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

func (s *baseServiceImpl[T]) Repository() (repository.Repository[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.opts.manager
	if m == nil {
		m = database.GetDatabaseManager()
	}
	if s.repo != nil && s.bound == m {
		return s.repo, nil
	}
	repo, err := NewRepository[T](m, s.opts.config)
	if err != nil {
		return nil, err
	}
	s.repo, s.bound = repo, m
	return repo, nil
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any, opts ...repository.Option) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.GetByPK(ctx, id, opts...)
}

func (s *baseServiceImpl[T]) Find(ctx context.Context, expr filter.Expression, opts ...repository.Option) (*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.GetByFilters(ctx, expr, opts...)
}

func (s *baseServiceImpl[T]) All(ctx context.Context, opts ...repository.Option) ([]*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.All(ctx, opts...)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, expr filter.Expression, opts ...repository.Option) ([]*T, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return repo.All(ctx, opts...)
	}
	return repo.AllByFilters(ctx, expr, opts...)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *repository.PageRequest, opts ...repository.Option) (*repository.Pagination[T], error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.Page(ctx, page, opts...)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, expr filter.Expression, opts ...repository.Option) (int, error) {
	repo, err := s.Repository()
	if err != nil {
		return 0, err
	}
	return repo.CountByFilters(ctx, expr, opts...)
}

func (s *baseServiceImpl[T]) Exists(ctx context.Context, expr filter.Expression, opts ...repository.Option) (bool, error) {
	repo, err := s.Repository()
	if err != nil {
		return false, err
	}
	return repo.ExistsByFilters(ctx, expr, opts...)
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	return repo.CreateMany(ctx, model)
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	return repo.Upsert(ctx, fields, duplicateKeys, model)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, values map[string]any, opts ...repository.Option) (int64, error) {
	repo, err := s.Repository()
	if err != nil {
		return 0, err
	}
	return repo.Update(ctx, id, values, opts...)
}

func (s *baseServiceImpl[T]) UpdateMany(ctx context.Context, ids []any, values map[string]any, opts ...repository.Option) (int64, error) {
	repo, err := s.Repository()
	if err != nil {
		return 0, err
	}
	return repo.MultiUpdate(ctx, ids, values, opts...)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any, opts ...repository.Option) (int64, error) {
	repo, err := s.Repository()
	if err != nil {
		return 0, err
	}
	return repo.Delete(ctx, id, opts...)
}

func (s *baseServiceImpl[T]) Transaction(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T]) error) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	return repo.WithTx(ctx, fn)
}
