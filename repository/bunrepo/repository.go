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

package bunrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/ormbridge/filter"
	"github.com/tomoncle/ormbridge/repository"
)

type options struct {
	factory repository.SessionFactory[bun.IDB]
}

// Option configures a bun repository.
type Option func(*options)

// WithSessionFactory opens a session for every call made without
// repository.WithSession.
func WithSessionFactory(f repository.SessionFactory[bun.IDB]) Option {
	return func(o *options) { o.factory = f }
}

// TxSessionFactory returns a factory running each call in its own
// transaction on db.
func TxSessionFactory(db bun.IDB) repository.SessionFactory[bun.IDB] {
	return func(ctx context.Context, fn func(ctx context.Context, s bun.IDB) error) error {
		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, tx)
		})
	}
}

// Repository implements repository.Repository on bun.
type Repository[T any] struct {
	db      bun.IDB
	table   *schema.Table
	cfg     repository.Config
	factory repository.SessionFactory[bun.IDB]
	tracker *repository.Tracker
}

var _ repository.Repository[struct{}] = (*Repository[struct{}])(nil)

// New returns a repository for model T on db.
func New[T any](db bun.IDB, cfg repository.Config, opts ...Option) (*Repository[T], error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotModel, typ)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.WithDefaults()
	table := db.Dialect().Tables().Get(typ)
	if lookupField(table, cfg.PKField) == nil {
		return nil, fmt.Errorf("%w: %s has no primary key column %q", repository.ErrUnknownColumn, table.TypeName, cfg.PKField)
	}
	if cfg.SoftDeletable && lookupField(table, cfg.SoftDeleteColumn) == nil {
		return nil, fmt.Errorf("%w: %s has no soft delete column %q", repository.ErrUnknownColumn, table.TypeName, cfg.SoftDeleteColumn)
	}
	return &Repository[T]{
		db:      db,
		table:   table,
		cfg:     cfg,
		factory: o.factory,
		tracker: repository.NewTracker(repository.BackendBun, table.TypeName, cfg),
	}, nil
}

// MustNew is like New but panics on error.
func MustNew[T any](db bun.IDB, cfg repository.Config, opts ...Option) *Repository[T] {
	r, err := New[T](db, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Repository[T]) Backend() string { return repository.BackendBun }

func (r *Repository[T]) Config() repository.Config { return r.cfg }

// DB returns the underlying bun handle.
func (r *Repository[T]) DB() bun.IDB { return r.db }

// Table returns the bun table metadata of T.
func (r *Repository[T]) Table() *schema.Table { return r.table }

func (r *Repository[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *Repository[T]) NewSelect() *bun.SelectQuery { return r.db.NewSelect().Model((*T)(nil)) }

func (r *Repository[T]) run(ctx context.Context, o repository.CallOptions, fn func(ctx context.Context, db bun.IDB) error) error {
	return repository.RunSession(ctx, o, r.db, r.factory, fn)
}

func (r *Repository[T]) compiler(qualify bool) *compiler {
	return &compiler{table: r.table, dialect: r.db.Dialect().Name(), qualify: qualify}
}

func (r *Repository[T]) where(expr filter.Expression, qualify bool) (Cond, error) {
	return filter.Compile[Cond](expr, r.compiler(qualify))
}

func (r *Repository[T]) softDelete(qualify bool) (Cond, error) {
	col, err := r.compiler(qualify).column(r.cfg.SoftDeleteColumn)
	if err != nil {
		return Cond{}, err
	}
	return Cond{"? = ?", []any{col, false}}, nil
}

// selectQuery builds a SELECT for dest with expr and the resolved plan.
func (r *Repository[T]) selectQuery(db bun.IDB, dest any, expr filter.Expression, plan repository.Plan) (*bun.SelectQuery, error) {
	q := db.NewSelect().Model(dest)
	if expr != nil {
		cond, err := r.where(expr, true)
		if err != nil {
			return nil, err
		}
		q = q.Where(cond.Query, cond.Args...)
	}
	if plan.SoftDelete {
		cond, err := r.softDelete(true)
		if err != nil {
			return nil, err
		}
		q = q.Where(cond.Query, cond.Args...)
	}
	for _, name := range plan.Related {
		if err := r.checkRelation(name); err != nil {
			return nil, err
		}
		q = q.Relation(name)
	}
	for _, o := range plan.Orders {
		col, err := r.compiler(true).column(o.Column)
		if err != nil {
			return nil, err
		}
		if o.Desc {
			q = q.OrderExpr("? DESC", col)
		} else {
			q = q.OrderExpr("? ASC", col)
		}
	}
	if plan.ForUpdate {
		switch db.Dialect().Name() {
		case dialect.SQLite:
			// sqlite locks the whole database on write; there is no row lock.
		case dialect.PG:
			if len(plan.Related) > 0 {
				q = q.For("UPDATE OF ?TableAlias")
			} else {
				q = q.For("UPDATE")
			}
		default:
			q = q.For("UPDATE")
		}
	}
	return q, nil
}

// mutationWhere compiles the WHERE of an UPDATE or DELETE.
func (r *Repository[T]) mutationWhere(expr filter.Expression, plan repository.Plan) ([]Cond, error) {
	cond, err := r.where(expr, false)
	if err != nil {
		return nil, err
	}
	conds := []Cond{cond}
	if plan.SoftDelete {
		sd, err := r.softDelete(false)
		if err != nil {
			return nil, err
		}
		conds = append(conds, sd)
	}
	return conds, nil
}

func (r *Repository[T]) checkRelation(name string) error {
	table := r.table
	for _, part := range strings.Split(name, ".") {
		rel, ok := table.Relations[part]
		if !ok {
			return fmt.Errorf("%w: %s has no relation %q", repository.ErrUnknownRelation, r.table.TypeName, name)
		}
		table = rel.JoinTable
	}
	return nil
}

func (r *Repository[T]) pkFilter(pk any) filter.Expression {
	return filter.Equal(r.cfg.PKField, pk)
}

func (r *Repository[T]) findOne(ctx context.Context, expr filter.Expression, o repository.CallOptions) (*T, error) {
	entity := new(T)
	err := r.run(ctx, o, func(ctx context.Context, db bun.IDB) error {
		q, err := r.selectQuery(db, entity, expr, repository.PlanFor(r.cfg, o.Extra, repository.KindSelect))
		if err != nil {
			return err
		}
		return q.Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %w", repository.ErrNotFound, err)
	}
	if err != nil {
		return repository.ApplyStrict[T](nil, err, o.Strict)
	}
	return entity, nil
}

func (r *Repository[T]) findAll(ctx context.Context, expr filter.Expression, o repository.CallOptions) ([]*T, error) {
	entities := make([]*T, 0)
	err := r.run(ctx, o, func(ctx context.Context, db bun.IDB) error {
		q, err := r.selectQuery(db, &entities, expr, repository.PlanFor(r.cfg, o.Extra, repository.KindSelect))
		if err != nil {
			return err
		}
		return q.Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *Repository[T]) count(ctx context.Context, expr filter.Expression, o repository.CallOptions) (int, error) {
	var n int
	err := r.run(ctx, o, func(ctx context.Context, db bun.IDB) error {
		q, err := r.selectQuery(db, (*T)(nil), expr, repository.PlanFor(r.cfg, o.Extra, repository.KindCount))
		if err != nil {
			return err
		}
		n, err = q.Count(ctx)
		return err
	})
	return n, err
}

func (r *Repository[T]) exists(ctx context.Context, expr filter.Expression, o repository.CallOptions) (bool, error) {
	var ok bool
	err := r.run(ctx, o, func(ctx context.Context, db bun.IDB) error {
		q, err := r.selectQuery(db, (*T)(nil), expr, repository.PlanFor(r.cfg, o.Extra, repository.KindCount))
		if err != nil {
			return err
		}
		ok, err = q.Exists(ctx)
		return err
	})
	return ok, err
}

func (r *Repository[T]) update(ctx context.Context, expr filter.Expression, values map[string]any, o repository.CallOptions) (int64, error) {
	if len(values) == 0 {
		return 0, repository.ErrNoValues
	}
	c := r.compiler(false)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	type assignment struct {
		col   bun.Safe
		value any
	}
	sets := make([]assignment, len(keys))
	for i, k := range keys {
		col, err := c.column(k)
		if err != nil {
			return 0, err
		}
		sets[i] = assignment{col, values[k]}
	}
	conds, err := r.mutationWhere(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindMutate))
	if err != nil {
		return 0, err
	}
	var affected int64
	err = r.run(ctx, o, func(ctx context.Context, db bun.IDB) error {
		q := db.NewUpdate().Model((*T)(nil))
		for _, s := range sets {
			q = q.Set("? = ?", s.col, s.value)
		}
		for _, cond := range conds {
			q = q.Where(cond.Query, cond.Args...)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (r *Repository[T]) delete(ctx context.Context, expr filter.Expression, o repository.CallOptions) (int64, error) {
	conds, err := r.mutationWhere(expr, repository.PlanFor(r.cfg, o.Extra, repository.KindMutate))
	if err != nil {
		return 0, err
	}
	var affected int64
	err = r.run(ctx, o, func(ctx context.Context, db bun.IDB) error {
		q := db.NewDelete().Model((*T)(nil))
		for _, cond := range conds {
			q = q.Where(cond.Query, cond.Args...)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (r *Repository[T]) Create(ctx context.Context, entity *T, opts ...repository.Option) (_ *T, err error) {
	defer r.tracker.Start(ctx, "create")(&err)
	if entity == nil {
		return nil, fmt.Errorf("%w: nil entity", repository.ErrNotModel)
	}
	err = r.run(ctx, repository.Resolve(opts...), func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewInsert().Model(entity).Exec(ctx)
		return err
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
	return r.run(ctx, repository.Resolve(opts...), func(ctx context.Context, db bun.IDB) error {
		_, err := db.NewInsert().Model(&entities).Exec(ctx)
		return err
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
	entities := make([]*T, 0, req.GetPageSize())
	err = r.run(ctx, o, func(ctx context.Context, db bun.IDB) error {
		q, err := r.selectQuery(db, &entities, req.GetFilters(), plan)
		if err != nil {
			return err
		}
		return q.Offset(req.GetOffset()).Limit(req.GetPageSize()).Scan(ctx)
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
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, r.bind(tx))
	})
}

// bind returns a copy of r running on db without a session factory.
func (r *Repository[T]) bind(db bun.IDB) *Repository[T] {
	c := *r
	c.db = db
	c.factory = nil
	return &c
}
