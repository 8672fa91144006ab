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

package filter

import (
	"fmt"
	"reflect"
	"strings"
)

// Expression is a node of a filter tree: either a *Filter or a *Seq.
type Expression interface {
	Validate() error
	String() string
	expression()
}

// Filter is a single column/operator/value predicate.
type Filter struct {
	Column   string   `json:"column" yaml:"column"`
	Value    any      `json:"value" yaml:"value"`
	Operator Operator `json:"operator" yaml:"operator"`
}

// New starts a filter on column. The value and operator are supplied later
// with Set, so a filter can be declared before its value is known.
func New(column string) *Filter {
	return &Filter{Column: column, Operator: Eq}
}

// Set assigns the value and operator and returns f.
func (f *Filter) Set(value any, op Operator) *Filter {
	f.Value = value
	f.Operator = op
	return f
}

// Where builds a complete filter in one step.
func Where(column string, op Operator, value any) *Filter {
	return &Filter{Column: column, Value: value, Operator: op}
}

// Equal matches rows where column = value.
func Equal(column string, value any) *Filter { return Where(column, Eq, value) }

func NotEqual(column string, value any) *Filter { return Where(column, Ne, value) }

func Less(column string, value any) *Filter { return Where(column, Lt, value) }

func LessOrEqual(column string, value any) *Filter { return Where(column, Le, value) }

func Greater(column string, value any) *Filter { return Where(column, Gt, value) }

func GreaterOrEqual(column string, value any) *Filter { return Where(column, Ge, value) }

// OneOf matches rows where column is any of values, which must be a slice.
func OneOf(column string, values any) *Filter { return Where(column, In, values) }

func NoneOf(column string, values any) *Filter { return Where(column, NotIn, values) }

// IsNull matches rows where column is NULL.
func IsNull(column string) *Filter { return Where(column, Is, nil) }

// NotNull matches rows where column is not NULL.
func NotNull(column string) *Filter { return Where(column, IsNot, nil) }

func Matches(column, pattern string) *Filter { return Where(column, Like, pattern) }

func MatchesFold(column, pattern string) *Filter { return Where(column, ILike, pattern) }

func HasSubstring(column, sub string) *Filter { return Where(column, Contains, sub) }

func HasPrefix(column, prefix string) *Filter { return Where(column, StartsWith, prefix) }

func HasSuffix(column, suffix string) *Filter { return Where(column, EndsWith, suffix) }

func (*Filter) expression() {}

// Validate checks the column, operator and value shape.
func (f *Filter) Validate() error {
	if f == nil {
		return ErrNilExpression
	}
	if strings.TrimSpace(f.Column) == "" {
		return ErrEmptyColumn
	}
	if !f.Operator.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidOperator, int(f.Operator))
	}
	switch {
	case f.Operator.IsSet():
		if !isList(f.Value) {
			return fmt.Errorf("%w: %s needs a slice, got %T", ErrInvalidValue, f.Operator, f.Value)
		}
	case f.Operator == Is || f.Operator == IsNot:
		if f.Value != nil {
			if _, ok := f.Value.(bool); !ok {
				return fmt.Errorf("%w: %s needs nil or bool, got %T", ErrInvalidValue, f.Operator, f.Value)
			}
		}
	case f.Operator.IsLike():
		if _, ok := f.Value.(string); !ok {
			return fmt.Errorf("%w: %s needs a string, got %T", ErrInvalidValue, f.Operator, f.Value)
		}
	}
	return nil
}

func (f *Filter) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s %v", f.Column, f.Operator, f.Value)
}

// Pattern returns the LIKE pattern for a pattern-matching filter.
func (f *Filter) Pattern() string {
	return LikePattern(f.Operator, f.Value)
}

// LikePattern wraps value in % wildcards according to op. Wildcards already
// present in value are kept as they are.
func LikePattern(op Operator, value any) string {
	s := fmt.Sprint(value)
	switch op {
	case Contains:
		return "%" + s + "%"
	case StartsWith:
		return s + "%"
	case EndsWith:
		return "%" + s
	}
	return s
}

// Values flattens a slice or array value into []any.
func Values(v any) []any {
	if vs, ok := v.([]any); ok {
		return vs
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
