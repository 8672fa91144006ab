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

package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/tomoncle/ormbridge/filter"
	"github.com/tomoncle/ormbridge/repository"
)

const dialectSQLite = "sqlite"

type options struct {
	factory repository.SessionFactory[*gorm.DB]
}

// Option configures a GORM repository.
type Option func(*options)

// WithSessionFactory opens a session for every call made without
// repository.WithSession.
func WithSessionFactory(f repository.SessionFactory[*gorm.DB]) Option {
	return func(o *options) { o.factory = f }
}

// TxSessionFactory returns a factory running each call in its own
// transaction on db.
func TxSessionFactory(db *gorm.DB) repository.SessionFactory[*gorm.DB] {
	return func(ctx context.Context, fn func(ctx context.Context, s *gorm.DB) error) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, tx)
		})
	}
}

// Repository implements repository.Repository on GORM.
type Repository[T any] struct {
	db      *gorm.DB
	schema  *schema.Schema
	cfg     repository.Config
	factory repository.SessionFactory[*gorm.DB]
	tracker *repository.Tracker
}

var _ repository.Repository[struct{}] = (*Repository[struct{}])(nil)

// New returns a repository for model T on db.
func New[T any](db *gorm.DB, cfg repository.Config, opts ...Option) (*Repository[T], error) {
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if typ := reflect.TypeFor[T](); typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotModel, typ)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrNotModel, err)
	}
	cfg = cfg.WithDefaults()
	if lookupField(stmt.Schema, cfg.PKField) == nil {
		return nil, fmt.Errorf("%w: %s has no primary key column %q", repository.ErrUnknownColumn, stmt.Schema.Name, cfg.PKField)
	}
	if cfg.SoftDeletable && lookupField(stmt.Schema, cfg.SoftDeleteColumn) == nil {
		return nil, fmt.Errorf("%w: %s has no soft delete column %q", repository.ErrUnknownColumn, stmt.Schema.Name, cfg.SoftDeleteColumn)
	}
	return &Repository[T]{
		db:      db,
		schema:  stmt.Schema,
		cfg:     cfg,
		factory: o.factory,
		tracker: repository.NewTracker(repository.BackendGorm, stmt.Schema.Name, cfg),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew[T any](db *gorm.DB, cfg repository.Config, opts ...Option) *Repository[T] {
	r, err := New[T](db, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Repository[T]) Backend() string { return repository.BackendGorm }

func (r *Repository[T]) Config() repository.Config { return r.cfg }

// DB returns the underlying GORM handle.
func (r *Repository[T]) DB() *gorm.DB { return r.db }

// Schema returns the parsed GORM schema of T.
func (r *Repository[T]) Schema() *schema.Schema { return r.schema }

func (r *Repository[T]) run(ctx context.Context, o repository.CallOptions, fn func(tx *gorm.DB) error) error {
	return repository.RunSession(ctx, o, r.db, r.factory, func(ctx context.Context, db *gorm.DB) error {
		return fn(db.WithContext(ctx))
	})
}

func (r *Repository[T]) dialect() string {
	return r.db.Dialector.Name()
}

func (r *Repository[T]) compiler() *compiler {
	return &compiler{schema: r.schema, dialect: r.dialect()}
}

// conditions compiles expr and the soft-delete scope into WHERE expressions.
func (r *Repository[T]) conditions(expr filter.Expression, plan repository.Plan) ([]clause.Expression, error) {
	var exprs []clause.Expression
	if expr != nil {
		cond, err := filter.Compile[clause.Expression](expr, r.compiler())
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, cond)
	}
	if plan.SoftDelete {
		col, err := r.compiler().column(r.cfg.SoftDeleteColumn)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, clause.Eq{Column: col, Value: false})
	}
	return exprs, nil
}

// scope turns a filter and plan into a GORM scope for a select.
func (r *Repository[T]) scope(expr filter.Expression, plan repository.Plan) (func(*gorm.DB) *gorm.DB, error) {
	exprs, err := r.conditions(expr, plan)
	if err != nil {
		return nil, err
	}
	type relation struct {
		name    string
		preload bool
	}
	relations := make([]relation, 0, len(plan.Related))
	for _, name := range plan.Related {
		rel, err := r.relation(name)
		if err != nil {
			return nil, err
		}
		preload := rel.Type == schema.HasMany || rel.Type == schema.Many2Many
		relations = append(relations, relation{name, preload})
	}
	orders := make([]clause.OrderByColumn, 0, len(plan.Orders))
	for _, o := range plan.Orders {
		col, err := r.compiler().column(o.Column)
		if err != nil {
			return nil, err
		}
		orders = append(orders, clause.OrderByColumn{Column: col, Desc: o.Desc})
	}
	lock := plan.ForUpdate && r.dialect() != dialectSQLite
	joined := len(relations) > 0

	return func(tx *gorm.DB) *gorm.DB {
		if len(exprs) > 0 {
			tx = tx.Clauses(clause.Where{Exprs: exprs})
		}
		for _, rel := range relations {
			if rel.preload {
				tx = tx.Preload(rel.name)
			} else {
				tx = tx.Joins(rel.name)
			}
		}
		for _, o := range orders {
			tx = tx.Order(o)
		}
		if lock {
			locking := clause.Locking{Strength: clause.LockingStrengthUpdate}
			if joined && r.dialect() == dialectPostgres {
				locking.Table = clause.Table{Name: clause.CurrentTable}
			}
			tx = tx.Clauses(locking)
		}
		return tx
	}, nil
}

// relation resolves a possibly dotted relation path and returns its first hop.
func (r *Repository[T]) relation(name string) (*schema.Relationship, error) {
	s := r.schema
	var first *schema.Relationship
	for _, part := range strings.Split(name, ".") {
		rel, ok := s.Relationships.Relations[part]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no relation %q", repository.ErrUnknownRelation, r.schema.Name, name)
		}
		if first == nil {
			first = rel
		}
		s = rel.FieldSchema
	}
	return first, nil
}

func (r *Repository[T]) pkFilter(pk any) filter.Expression {
	return filter.Equal(r.cfg.PKField, pk)
}

func (r *Repository[T]) findOne(ctx context.Context, expr filter.Expression, o repository.CallOptions) (*T, error) {
	scope, err := r.scope(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindSelect))
	if err != nil {
		return nil, err
	}
	entity := new(T)
	err = r.run(ctx, o, func(tx *gorm.DB) error {
		return tx.Model(new(T)).Scopes(scope).Take(entity).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	}
	if err != nil {
		return repository.ApplyStrict[T](nil, err, o.Strict)
	}
	return entity, nil
}

func (r *Repository[T]) findAll(ctx context.Context, expr filter.Expression, o repository.CallOptions) ([]*T, error) {
	scope, err := r.scope(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindSelect))
	if err != nil {
		return nil, err
	}
	entities := make([]*T, 0)
	err = r.run(ctx, o, func(tx *gorm.DB) error {
		return tx.Model(new(T)).Scopes(scope).Find(&entities).Error
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *Repository[T]) count(ctx context.Context, expr filter.Expression, o repository.CallOptions) (int, error) {
	scope, err := r.scope(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindCount))
	if err != nil {
		return 0, err
	}
	var n int64
	err = r.run(ctx, o, func(tx *gorm.DB) error {
		return tx.Model(new(T)).Scopes(scope).Count(&n).Error
	})
	return int(n), err
}

func (r *Repository[T]) exists(ctx context.Context, expr filter.Expression, o repository.CallOptions) (bool, error) {
	scope, err := r.scope(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindCount))
	if err != nil {
		return false, err
	}
	var rows []int
	err = r.run(ctx, o, func(tx *gorm.DB) error {
		return tx.Model(new(T)).Scopes(scope).Select("1").Limit(1).Scan(&rows).Error
	})
	return len(rows) > 0, err
}

func (r *Repository[T]) update(ctx context.Context, expr filter.Expression, values map[string]any, o repository.CallOptions) (int64, error) {
	if len(values) == 0 {
		return 0, repository.ErrNoValues
	}
	columns := make(map[string]any, len(values))
	for k, v := range values {
		field := lookupField(r.schema, k)
		if field == nil {
			return 0, fmt.Errorf("%w: %s has no column %q", repository.ErrUnknownColumn, r.schema.Name, k)
		}
		columns[field.DBName] = v
	}
	exprs, err := r.conditions(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindMutate))
	if err != nil {
		return 0, err
	}
	var affected int64
	err = r.run(ctx, o, func(tx *gorm.DB) error {
		res := tx.Model(new(T)).Clauses(clause.Where{Exprs: exprs}).Updates(columns)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (r *Repository[T]) delete(ctx context.Context, expr filter.Expression, o repository.CallOptions) (int64, error) {
	exprs, err := r.conditions(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindMutate))
	if err != nil {
		return 0, err
	}
	var affected int64
	err = r.run(ctx, o, func(tx *gorm.DB) error {
		res := tx.Clauses(clause.Where{Exprs: exprs}).Delete(new(T))
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (r *Repository[T]) Create(ctx context.Context, entity *T, opts ...repository.Option) (_ *T, err error) {
	defer r.tracker.Start(ctx, "create")(&err)
	if entity == nil {
		return nil, fmt.Errorf("%w: nil entity", repository.ErrNotModel)
	}
	err = r.run(ctx, repository.Resolve(opts...), func(tx *gorm.DB) error {
		return tx.Create(entity).Error
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *Repository[T]) CreateMany(ctx context.Context, entities []*T, opts ...repository.Option) (err error) {
	defer r.tracker.Start(ctx, "create_many")(&err)
	if len(entities) == 0 {
		return nil
	}
	return r.run(ctx, repository.Resolve(opts...), func(tx *gorm.DB) error {
		return tx.Create(&entities).Error
	})
}

func (r *Repository[T]) GetByField(ctx context.Context, name string, value any, opts ...repository.Option) (_ *T, err error) {
	defer r.tracker.Start(ctx, "get_by_field")(&err)
	return r.findOne(ctx, filter.Equal(name, value), repository.Resolve(opts...))
}

func (r *Repository[T]) GetByFilters(ctx context.Context, expr filter.Expression, opts ...repository.Option) (_ *T, err error) {
	defer r.tracker.Start(ctx, "get_by_filters")(&err)
	return r.findOne(ctx, expr, repository.Resolve(opts...))
}

func (r *Repository[T]) GetByPK(ctx context.Context, pk any, opts ...repository.Option) (_ *T, err error) {
	defer r.tracker.Start(ctx, "get_by_pk")(&err)
	return r.findOne(ctx, r.pkFilter(pk), repository.Resolve(opts...))
}

func (r *Repository[T]) All(ctx context.Context, opts ...repository.Option) (_ []*T, err error) {
	defer r.tracker.Start(ctx, "all")(&err)
	return r.findAll(ctx, nil, repository.Resolve(opts...))
}

func (r *Repository[T]) AllByField(ctx context.Context, name string, value any, opts ...repository.Option) (_ []*T, err error) {
	defer r.tracker.Start(ctx, "all_by_field")(&err)
	return r.findAll(ctx, filter.Equal(name, value), repository.Resolve(opts...))
}

func (r *Repository[T]) AllByFilters(ctx context.Context, expr filter.Expression, opts ...repository.Option) (_ []*T, err error) {
	defer r.tracker.Start(ctx, "all_by_filters")(&err)
	return r.findAll(ctx, expr, repository.Resolve(opts...))
}

func (r *Repository[T]) AllByPKs(ctx context.Context, pks []any, opts ...repository.Option) (_ []*T, err error) {
	defer r.tracker.Start(ctx, "all_by_pks")(&err)
	if len(pks) == 0 {
		return make([]*T, 0), nil
	}
	return r.findAll(ctx, filter.OneOf(r.cfg.PKField, pks), repository.Resolve(opts...))
}

func (r *Repository[T]) Update(ctx context.Context, pk any, values map[string]any, opts ...repository.Option) (_ int64, err error) {
	defer r.tracker.Start(ctx, "update")(&err)
	return r.update(ctx, r.pkFilter(pk), values, repository.Resolve(opts...))
}

func (r *Repository[T]) MultiUpdate(ctx context.Context, pks []any, values map[string]any, opts ...repository.Option) (_ int64, err error) {
	defer r.tracker.Start(ctx, "multi_update")(&err)
	if len(values) == 0 {
		return 0, repository.ErrNoValues
	}
	if len(pks) == 0 {
		return 0, nil
	}
	return r.update(ctx, filter.OneOf(r.cfg.PKField, pks), values, repository.Resolve(opts...))
}

func (r *Repository[T]) Delete(ctx context.Context, pk any, opts ...repository.Option) (_ int64, err error) {
	defer r.tracker.Start(ctx, "delete")(&err)
	return r.delete(ctx, r.pkFilter(pk), repository.Resolve(opts...))
}

func (r *Repository[T]) DeleteByField(ctx context.Context, name string, value any, opts ...repository.Option) (_ int64, err error) {
	defer r.tracker.Start(ctx, "delete_by_field")(&err)
	return r.delete(ctx, filter.Equal(name, value), repository.Resolve(opts...))
}

func (r *Repository[T]) ExistsByField(ctx context.Context, name string, value any, opts ...repository.Option) (_ bool, err error) {
	defer r.tracker.Start(ctx, "exists_by_field")(&err)
	return r.exists(ctx, filter.Equal(name, value), repository.Resolve(opts...))
}

func (r *Repository[T]) ExistsByFilters(ctx context.Context, expr filter.Expression, opts ...repository.Option) (_ bool, err error) {
	defer r.tracker.Start(ctx, "exists_by_filters")(&err)
	return r.exists(ctx, expr, repository.Resolve(opts...))
}

func (r *Repository[T]) CountByField(ctx context.Context, name string, value any, opts ...repository.Option) (_ int, err error) {
	defer r.tracker.Start(ctx, "count_by_field")(&err)
	return r.count(ctx, filter.Equal(name, value), repository.Resolve(opts...))
}

func (r *Repository[T]) CountByFilters(ctx context.Context, expr filter.Expression, opts ...repository.Option) (_ int, err error) {
	defer r.tracker.Start(ctx, "count_by_filters")(&err)
	return r.count(ctx, expr, repository.Resolve(opts...))
}

// Upsert inserts entities and, on a conflict over duplicateKeys, updates
// fields. duplicateKeys defaults to the primary key.
func (r *Repository[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities []*T, opts ...repository.Option) (err error) {
	defer r.tracker.Start(ctx, "upsert")(&err)
	if len(fields) == 0 {
		return fmt.Errorf("%w: upsert fields cannot be empty", repository.ErrNoValues)
	}
	if len(entities) == 0 {
		return nil
	}
	c := r.compiler()
	updates := make([]string, len(fields))
	for i, f := range fields {
		col, err := c.column(f)
		if err != nil {
			return err
		}
		updates[i] = col.Name
	}
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{r.cfg.PKField}
	}
	keys := make([]clause.Column, len(duplicateKeys))
	for i, k := range duplicateKeys {
		col, err := c.column(k)
		if err != nil {
			return err
		}
		keys[i] = clause.Column{Name: col.Name}
	}
	return r.run(ctx, repository.Resolve(opts...), func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   keys,
			DoUpdates: clause.AssignmentColumns(updates),
		}).Create(&entities).Error
	})
}

func (r *Repository[T]) Page(ctx context.Context, req *repository.PageRequest, opts ...repository.Option) (_ *repository.Pagination[T], err error) {
	defer r.tracker.Start(ctx, "page")(&err)
	if req == nil {
		req = repository.NewDefaultPageRequest(repository.DefaultPage, repository.DefaultPageSize)
	}
	o := repository.Resolve(opts...)
	pagination := repository.NewDefaultPagination[T](req.GetPage(), req.GetPageSize())
	total, err := r.count(ctx, req.GetFilters(), o)
	if err != nil || total == 0 {
		return pagination, err
	}
	plan := repository.PlanFor(r.cfg, o.Extra, repository.KindSelect)
	if orders := repository.ParseOrders(req.GetOrders()); len(orders) > 0 {
		plan.Orders = orders
	}
	scope, err := r.scope(req.GetFilters(), plan)
	if err != nil {
		return nil, err
	}
	entities := make([]*T, 0, req.GetPageSize())
	err = r.run(ctx, o, func(tx *gorm.DB) error {
		return tx.Model(new(T)).Scopes(scope).Offset(req.GetOffset()).Limit(req.GetPageSize()).Find(&entities).Error
	})
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

// WithTx runs fn against a copy of r bound to a new transaction.
func (r *Repository[T]) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repository[T]) error) (err error) {
	defer r.tracker.Start(ctx, "with_tx")(&err)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, r.bind(tx))
	})
}

func (r *Repository[T]) bind(db *gorm.DB) *Repository[T] {
	c := *r
	c.db = db
	c.factory = nil
	return &c
}
