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
	"fmt"

	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/tomoncle/ormbridge/filter"
	"github.com/tomoncle/ormbridge/repository"
)

const dialectPostgres = "postgres"

type opFunc func(col clause.Column, f *filter.Filter, dialect string) clause.Expression

var operators = map[filter.Operator]opFunc{
	filter.Eq: func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		return clause.Eq{Column: col, Value: f.Value}
	},
	filter.Ne: func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		return clause.Neq{Column: col, Value: f.Value}
	},
	filter.Lt: func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		return clause.Lt{Column: col, Value: f.Value}
	},
	filter.Le: func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		return clause.Lte{Column: col, Value: f.Value}
	},
	filter.Gt: func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		return clause.Gt{Column: col, Value: f.Value}
	},
	filter.Ge: func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		return clause.Gte{Column: col, Value: f.Value}
	},
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

func like(col clause.Column, f *filter.Filter, _ string) clause.Expression {
	return clause.Like{Column: col, Value: f.Pattern()}
}

func ilike(col clause.Column, f *filter.Filter, dialect string) clause.Expression {
	if dialect == dialectPostgres {
		return clause.Expr{SQL: "? ILIKE ?", Vars: []any{col, f.Pattern()}}
	}
	return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?)", Vars: []any{col, f.Pattern()}}
}

func in(negate bool) opFunc {
	return func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		values := filter.Values(f.Value)
		if len(values) == 0 {
			if negate {
				return clause.Expr{SQL: "1 = 1"}
			}
			return clause.Expr{SQL: "1 = 0"}
		}
		expr := clause.IN{Column: col, Values: values}
		if negate {
			return clause.Not(expr)
		}
		return expr
	}
}

// is renders IS [NOT] NULL/TRUE/FALSE as literals; placeholders are not
// accepted after IS by every dialect.
func is(negate bool) opFunc {
	return func(col clause.Column, f *filter.Filter, _ string) clause.Expression {
		kw := "? IS "
		if negate {
			kw = "? IS NOT "
		}
		switch v := f.Value.(type) {
		case bool:
			if v {
				return clause.Expr{SQL: kw + "TRUE", Vars: []any{col}}
			}
			return clause.Expr{SQL: kw + "FALSE", Vars: []any{col}}
		}
		return clause.Expr{SQL: kw + "NULL", Vars: []any{col}}
	}
}

// compiler implements filter.Compiler over a parsed GORM schema.
type compiler struct {
	schema  *schema.Schema
	dialect string
}

func (c *compiler) column(name string) (clause.Column, error) {
	field := lookupField(c.schema, name)
	if field == nil {
		return clause.Column{}, fmt.Errorf("%w: %s has no column %q", repository.ErrUnknownColumn, c.schema.Name, name)
	}
	return clause.Column{Table: clause.CurrentTable, Name: field.DBName}, nil
}

func (c *compiler) Filter(f *filter.Filter) (clause.Expression, error) {
	col, err := c.column(f.Column)
	if err != nil {
		return nil, err
	}
	op := f.Operator
	if f.Value == nil && (op == filter.Eq || op == filter.Ne) {
		if op == filter.Eq {
			op = filter.Is
		} else {
			op = filter.IsNot
		}
	}
	build, ok := operators[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", filter.ErrInvalidOperator, f.Operator)
	}
	return build(col, f, c.dialect), nil
}

func (c *compiler) Combine(mode filter.Mode, items []clause.Expression) (clause.Expression, error) {
	if mode == filter.ModeOr {
		return clause.Or(items...), nil
	}
	return clause.And(items...), nil
}

// lookupField resolves a database column by column or Go field name.
func lookupField(s *schema.Schema, name string) *schema.Field {
	f := s.LookUpField(name)
	if f == nil || f.DBName == "" {
		return nil
	}
	return f
}
