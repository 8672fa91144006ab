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

import "fmt"

// Compiler turns filter trees into a backend-native condition type C.
type Compiler[C any] interface {
	// Filter compiles a single predicate.
	Filter(f *Filter) (C, error)
	// Combine joins two or more compiled items with mode.
	Combine(mode Mode, items []C) (C, error)
}

// Compile validates expr and compiles it with c. A sequence holding a
// single item compiles to that item.
func Compile[C any](expr Expression, c Compiler[C]) (C, error) {
	var zero C
	if expr == nil {
		return zero, ErrNilExpression
	}
	if err := expr.Validate(); err != nil {
		return zero, err
	}
	return compile(expr, c)
}

func compile[C any](expr Expression, c Compiler[C]) (C, error) {
	var zero C
	switch e := expr.(type) {
	case *Filter:
		return c.Filter(e)
	case *Seq:
		parts := make([]C, 0, len(e.Items))
		for _, item := range e.Items {
			part, err := compile(item, c)
			if err != nil {
				return zero, err
			}
			parts = append(parts, part)
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return c.Combine(e.Mode, parts)
	}
	return zero, fmt.Errorf("filter: unsupported expression %T", expr)
}

// Walk calls fn for every Filter in expr, depth first.
func Walk(expr Expression, fn func(*Filter) error) error {
	switch e := expr.(type) {
	case *Filter:
		if e == nil {
			return ErrNilExpression
		}
		return fn(e)
	case *Seq:
		if e == nil {
			return ErrNilExpression
		}
		for _, item := range e.Items {
			if err := Walk(item, fn); err != nil {
				return err
			}
		}
		return nil
	}
	return ErrNilExpression
}

// Columns returns the distinct columns referenced by expr in visit order.
func Columns(expr Expression) []string {
	seen := make(map[string]struct{})
	var cols []string
	_ = Walk(expr, func(f *Filter) error {
		if _, ok := seen[f.Column]; !ok {
			seen[f.Column] = struct{}{}
			cols = append(cols, f.Column)
		}
		return nil
	})
	return cols
}
