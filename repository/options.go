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

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/tomoncle/ormbridge/database"
	"github.com/tomoncle/ormbridge/types"
)

const (
	DefaultPKField          = "id"
	DefaultSoftDeleteColumn = "is_deleted"
)

// Config describes how a repository treats its model.
type Config struct {
	// PKField is the primary key column.
	PKField string `json:"pk_field" yaml:"pk_field" mapstructure:"pk_field"`
	// SoftDeletable enables the soft-delete scope on every query.
	SoftDeletable bool `json:"soft_deletable" yaml:"soft_deletable" mapstructure:"soft_deletable"`
	// SoftDeleteColumn is a boolean column, true for deleted rows.
	SoftDeleteColumn string `json:"soft_delete_column" yaml:"soft_delete_column" mapstructure:"soft_delete_column"`
	// DefaultOrdering applies to selects without an explicit ordering.
	DefaultOrdering []string `json:"default_ordering" yaml:"default_ordering" mapstructure:"default_ordering"`

	Logger database.Logger `json:"-" yaml:"-" mapstructure:"-"`
	Meter  metric.Meter    `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.PKField == "" {
		c.PKField = DefaultPKField
	}
	if c.SoftDeleteColumn == "" {
		c.SoftDeleteColumn = DefaultSoftDeleteColumn
	}
	if c.DefaultOrdering == nil {
		c.DefaultOrdering = []string{c.PKField}
	}
	if c.Logger == nil {
		c.Logger = database.GetLogger()
	}
	return c
}

// CallOptions are the resolved per-call options.
type CallOptions struct {
	Extra   *types.Extra
	Strict  bool
	Session any
}

// Option customizes a single repository call.
type Option func(*CallOptions)

// WithExtra sets the auxiliary query options.
func WithExtra(extra *types.Extra) Option {
	return func(o *CallOptions) { o.Extra = extra }
}

// NonStrict makes single-row lookups return nil instead of ErrNotFound.
func NonStrict() Option {
	return Strict(false)
}

// Strict toggles ErrNotFound on single-row lookups. Lookups are strict by default.
func Strict(strict bool) Option {
	return func(o *CallOptions) { o.Strict = strict }
}

// WithSession runs the call on an existing backend session, such as a
// bun.Tx or a *gorm.DB transaction.
func WithSession(session any) Option {
	return func(o *CallOptions) { o.Session = session }
}

// Resolve applies opts over the defaults.
func Resolve(opts ...Option) CallOptions {
	o := CallOptions{Strict: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.Extra = o.Extra.OrDefault()
	return o
}
