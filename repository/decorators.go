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
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tomoncle/ormbridge/database"
)

// Outcomes recorded on the operations counter.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Tracker wraps repository operations with error translation, logging and
// metrics.
type Tracker struct {
	backend string
	model   string
	logger  database.Logger
	inst    *instruments
}

// NewTracker builds a tracker for one backend and model.
func NewTracker(backend, model string, cfg Config) *Tracker {
	cfg = cfg.WithDefaults()
	return &Tracker{
		backend: backend,
		model:   model,
		logger:  cfg.Logger,
		inst:    newInstruments(cfg.Meter),
	}
}

// Start begins tracking op. Defer the returned func with the address of
// the named error result:
//
//	defer r.tracker.Start(ctx, "get_by_pk")(&err)
func (t *Tracker) Start(ctx context.Context, op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		outcome := OutcomeOK
		if errp != nil && *errp != nil {
			err := Translate(*errp)
			switch {
			case errors.Is(err, ErrNotFound):
				outcome = OutcomeNotFound
				t.logger.Debug("record not found", "backend", t.backend, "model", t.model, "op", op)
			case expected(err):
				outcome = OutcomeInvalid
				t.logger.Warn("invalid repository call", "backend", t.backend, "model", t.model, "op", op, "error", err)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				outcome = OutcomeError
				t.logger.Warn("repository call interrupted", "backend", t.backend, "model", t.model, "op", op, "error", err)
			default:
				outcome = OutcomeError
				t.logger.Error("repository call failed", "backend", t.backend, "model", t.model, "op", op, "error", err)
			}
			*errp = fmt.Errorf("%s %s.%s: %w", t.backend, t.model, op, err)
		}
		t.inst.record(ctx, start,
			attribute.String("backend", t.backend),
			attribute.String("model", t.model),
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		)
	}
}

// ApplyStrict turns a missing row into (nil, nil) for non-strict calls.
func ApplyStrict[T any](v *T, err error, strict bool) (*T, error) {
	if err != nil && !strict && IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

// RunSession calls fn with the session for a call: the one passed through
// WithSession, one opened by factory, or db.
func RunSession[S any](ctx context.Context, o CallOptions, db S, factory SessionFactory[S], fn func(ctx context.Context, s S) error) error {
	if o.Session != nil {
		s, ok := o.Session.(S)
		if !ok {
			return fmt.Errorf("%w: %T is not a %s", ErrInvalidSession, o.Session, reflect.TypeFor[S]())
		}
		return fn(ctx, s)
	}
	if factory != nil {
		return factory(ctx, fn)
	}
	return fn(ctx, db)
}

// ModelName returns the Go type name of T for logs and metrics.
func ModelName[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
