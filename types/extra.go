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

package types

import "strings"

// DescPrefix marks an ordering entry as descending, e.g. "-created_at".
const DescPrefix = "-"

// Extra carries auxiliary per-call query options.
type Extra struct {
	// ForUpdate locks selected rows until the surrounding transaction ends.
	ForUpdate bool `json:"for_update" yaml:"for_update"`
	// IncludeSoftDeleted disables the soft-delete scope.
	IncludeSoftDeleted bool `json:"include_soft_deleted" yaml:"include_soft_deleted"`
	// Ordering lists column names, "-" prefixed for descending.
	// Empty means the repository default ordering.
	Ordering []string `json:"ordering,omitempty" yaml:"ordering,omitempty"`
	// SelectRelated names relations to join into selects.
	SelectRelated []string `json:"select_related,omitempty" yaml:"select_related,omitempty"`
}

// DefaultExtra returns an Extra with every option off.
func DefaultExtra() *Extra {
	return &Extra{}
}

// OrDefault returns e, or DefaultExtra when e is nil.
func (e *Extra) OrDefault() *Extra {
	if e == nil {
		return DefaultExtra()
	}
	return e
}

// WithForUpdate returns a copy of e with row locking enabled.
func (e *Extra) WithForUpdate() *Extra {
	c := e.clone()
	c.ForUpdate = true
	return c
}

// WithSoftDeleted returns a copy of e that also matches soft-deleted rows.
func (e *Extra) WithSoftDeleted() *Extra {
	c := e.clone()
	c.IncludeSoftDeleted = true
	return c
}

// OrderBy returns a copy of e ordered by cols.
func (e *Extra) OrderBy(cols ...string) *Extra {
	c := e.clone()
	c.Ordering = append([]string(nil), cols...)
	return c
}

// Related returns a copy of e that joins the named relations.
func (e *Extra) Related(names ...string) *Extra {
	c := e.clone()
	c.SelectRelated = append(append([]string(nil), c.SelectRelated...), names...)
	return c
}

// OrderingOr returns the explicit ordering, or fallback when none is set.
func (e *Extra) OrderingOr(fallback []string) []string {
	if e == nil || len(e.Ordering) == 0 {
		return fallback
	}
	return e.Ordering
}

func (e *Extra) clone() *Extra {
	if e == nil {
		return DefaultExtra()
	}
	c := *e
	c.Ordering = append([]string(nil), e.Ordering...)
	c.SelectRelated = append([]string(nil), e.SelectRelated...)
	return &c
}

// ParseOrdering splits an ordering entry into its column and direction.
func ParseOrdering(entry string) (column string, desc bool) {
	entry = strings.TrimSpace(entry)
	if strings.HasPrefix(entry, DescPrefix) {
		return strings.TrimSpace(entry[len(DescPrefix):]), true
	}
	return entry, false
}
