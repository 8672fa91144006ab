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
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/ormbridge/repository"
)

// Upsert inserts entities and, on a conflict over duplicateKeys, updates
// fields. duplicateKeys defaults to the primary key and is ignored by
// MySQL, which resolves conflicts on any unique key.
func (r *Repository[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entities []*T, opts ...repository.Option) (err error) {
	defer r.tracker.Start(ctx, "upsert")(&err)
	if len(fields) == 0 {
		return fmt.Errorf("%w: upsert fields cannot be empty", repository.ErrNoValues)
	}
	if len(entities) == 0 {
		return nil
	}
	cols, keys, err := r.upsertColumns(fields, duplicateKeys)
	if err != nil {
		return err
	}

	return r.run(ctx, repository.Resolve(opts...), func(ctx context.Context, db bun.IDB) error {
		q, err := upsertQuery(db, cols, keys, entities)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx)
		return err
	})
}

func (r *Repository[T]) upsertColumns(fields, duplicateKeys []string) (cols []bun.Safe, keys []string, err error) {
	c := r.compiler(false)
	cols = make([]bun.Safe, len(fields))
	for i, f := range fields {
		if cols[i], err = c.column(f); err != nil {
			return nil, nil, err
		}
	}
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{r.cfg.PKField}
	}
	keys = make([]string, len(duplicateKeys))
	for i, k := range duplicateKeys {
		col, err := c.column(k)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = string(col)
	}
	return cols, keys, nil
}

// upsertQuery builds the dialect's native upsert: ON CONFLICT for
// PostgreSQL and SQLite, ON DUPLICATE KEY UPDATE for MySQL.
func upsertQuery[T any](db bun.IDB, cols []bun.Safe, keys []string, entities []*T) (*bun.InsertQuery, error) {
	features := db.Dialect().Features()
	sets := make([]string, len(cols))
	switch {
	case features.Has(feature.InsertOnConflict):
		for i, col := range cols {
			sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
		}
		return db.NewInsert().
			Model(&entities).
			On("CONFLICT (" + strings.Join(keys, ", ") + ") DO UPDATE").
			Set(strings.Join(sets, ", ")), nil
	case features.Has(feature.InsertOnDuplicateKey):
		for i, col := range cols {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
		}
		return db.NewInsert().
			Model(&entities).
			On("DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")), nil
	}
	return nil, fmt.Errorf("upsert is not supported by the %s dialect", db.Dialect().Name())
}
