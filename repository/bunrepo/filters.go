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
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/ormbridge/filter"
	"github.com/tomoncle/ormbridge/repository"
)

// Cond is a compiled WHERE fragment with positional arguments.
type Cond struct {
	Query string
	Args  []any
}

type opFunc func(col bun.Safe, f *filter.Filter, d dialect.Name) Cond

func binary(sqlOp string) opFunc {
	return func(col bun.Safe, f *filter.Filter, _ dialect.Name) Cond {
		return Cond{"? " + sqlOp + " ?", []any{col, f.Value}}
	}
}

func like(col bun.Safe, f *filter.Filter, _ dialect.Name) Cond {
	return Cond{"? LIKE ?", []any{col, f.Pattern()}}
}

func ilike(col bun.Safe, f *filter.Filter, d dialect.Name) Cond {
	if d == dialect.PG {
		return Cond{"? ILIKE ?", []any{col, f.Pattern()}}
	}
	return Cond{"LOWER(?) LIKE LOWER(?)", []any{col, f.Pattern()}}
}

func in(negate bool) opFunc {
	return func(col bun.Safe, f *filter.Filter, _ dialect.Name) Cond {
		values := filter.Values(f.Value)
		if len(values) == 0 {
			if negate {
				return Cond{Query: "1 = 1"}
			}
			return Cond{Query: "1 = 0"}
		}
		if negate {
			return Cond{"? NOT IN (?)", []any{col, bun.In(values)}}
		}
		return Cond{"? IN (?)", []any{col, bun.In(values)}}
	}
}

// is renders IS [NOT] NULL/TRUE/FALSE as literals; placeholders are not
// accepted after IS by every dialect.
func is(negate bool) opFunc {
	return func(col bun.Safe, f *filter.Filter, _ dialect.Name) Cond {
		kw := "IS "
		if negate {
			kw = "IS NOT "
		}
		switch v := f.Value.(type) {
		case bool:
			if v {
				return Cond{"? " + kw + "TRUE", []any{col}}
			}
			return Cond{"? " + kw + "FALSE", []any{col}}
		}
		return Cond{"? " + kw + "NULL", []any{col}}
	}
}

var operators = map[filter.Operator]opFunc{
	filter.Eq:         binary("="),
	filter.Ne:         binary("<>"),
	filter.Lt:         binary("<"),
	filter.Le:         binary("<="),
	filter.Gt:         binary(">"),
	filter.Ge:         binary(">="),
	filter.In:         in(false),
	filter.NotIn:      in(true),
	filter.Is:         is(false),
	filter.IsNot:      is(true),
	filter.Like:       like,
	filter.ILike:      ilike,
	filter.Contains:   like,
	filter.StartsWith: like,
	filter.EndsWith:   like,
}

// compiler implements filter.Compiler for one bun table.
type compiler struct {
	table   *schema.Table
	dialect dialect.Name
	// qualify prefixes columns with the table alias. UPDATE and DELETE do
	// not alias the table on every dialect, so they use bare names.
	qualify bool
}

func (c *compiler) column(name string) (bun.Safe, error) {
	field := lookupField(c.table, name)
	if field == nil {
		return "", fmt.Errorf("%w: %s has no column %q", repository.ErrUnknownColumn, c.table.TypeName, name)
	}
	if c.qualify {
		return bun.Safe(string(c.table.SQLAlias) + "." + string(field.SQLName)), nil
	}
	return bun.Safe(field.SQLName), nil
}

func (c *compiler) Filter(f *filter.Filter) (Cond, error) {
	col, err := c.column(f.Column)
	if err != nil {
		return Cond{}, err
	}
	op := f.Operator
	// = NULL never matches; treat it as IS NULL.
	if f.Value == nil && (op == filter.Eq || op == filter.Ne) {
		if op == filter.Eq {
			op = filter.Is
		} else {
			op = filter.IsNot
		}
	}
	build, ok := operators[op]
	if !ok {
		return Cond{}, fmt.Errorf("%w: %s", filter.ErrInvalidOperator, f.Operator)
	}
	return build(col, f, c.dialect), nil
}

func (c *compiler) Combine(mode filter.Mode, items []Cond) (Cond, error) {
	parts := make([]string, len(items))
	var args []any
	for i, item := range items {
		parts[i] = item.Query
		args = append(args, item.Args...)
	}
	return Cond{"(" + strings.Join(parts, " "+mode.SQL()+" ") + ")", args}, nil
}

// lookupField resolves a column by SQL name, then by Go field name.
func lookupField(table *schema.Table, name string) *schema.Field {
	if f := table.LookupField(name); f != nil {
		return f
	}
	for _, f := range table.Fields {
		if f.GoName == name {
			return f
		}
	}
	return nil
}
