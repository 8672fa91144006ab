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

import "github.com/tomoncle/ormbridge/types"

// QueryKind selects which Extra options a query honours.
type QueryKind int

const (
	// KindSelect reads rows: every option applies.
	KindSelect QueryKind = iota
	// KindCount counts or checks existence: only the soft-delete scope applies.
	KindCount
	// KindMutate updates or deletes: only the soft-delete scope applies.
	KindMutate
)

// Order is one resolved ORDER BY entry.
type Order struct {
	Column string
	Desc   bool
}

// Plan is Extra resolved against a repository Config for one query.
type Plan struct {
	ForUpdate  bool
	SoftDelete bool
	Orders     []Order
	Related    []string
}

// PlanFor resolves extra for a query of the given kind.
func PlanFor(cfg Config, extra *types.Extra, kind QueryKind) Plan {
	extra = extra.OrDefault()
	p := Plan{SoftDelete: cfg.SoftDeletable && !extra.IncludeSoftDeleted}
	if kind != KindSelect {
		return p
	}
	p.ForUpdate = extra.ForUpdate
	for _, entry := range extra.OrderingOr(cfg.DefaultOrdering) {
		col, desc := types.ParseOrdering(entry)
		if col == "" {
			continue
		}
		p.Orders = append(p.Orders, Order{Column: col, Desc: desc})
	}
	p.Related = extra.SelectRelated
	return p
}

// ParseOrders resolves "-col" style entries without defaults.
func ParseOrders(entries []string) []Order {
	var out []Order
	for _, entry := range entries {
		col, desc := types.ParseOrdering(entry)
		if col != "" {
			out = append(out, Order{Column: col, Desc: desc})
		}
	}
	return out
}
