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

// GetOrNotFound returns obj, or a NotFoundError when obj is nil. It pairs
// with NonStrict lookups.
func GetOrNotFound[T any](obj *T, msg ...string) (*T, error) {
	if obj != nil {
		return obj, nil
	}
	m := DefaultNotFoundMessage
	if len(msg) > 0 && msg[0] != "" {
		m = msg[0]
	}
	return nil, &NotFoundError{Message: m}
}

// Convert maps result rows to another representation. A nil input stays nil.
func Convert[T, R any](items []*T, fn func(*T) R) []R {
	if items == nil {
		return nil
	}
	out := make([]R, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}

// ConvertOne maps a single row. A nil row yields nil.
func ConvertOne[T, R any](item *T, fn func(*T) R) *R {
	if item == nil {
		return nil
	}
	r := fn(item)
	return &r
}

// ConvertResult maps the result of a lookup, passing errors through.
func ConvertResult[T, R any](item *T, err error, fn func(*T) R) (*R, error) {
	if err != nil {
		return nil, err
	}
	return ConvertOne(item, fn), nil
}

// PKs converts typed keys into the []any taken by AllByPKs and MultiUpdate.
func PKs[K any](keys ...K) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
