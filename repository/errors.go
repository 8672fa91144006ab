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

	"github.com/tomoncle/ormbridge/database"
	"github.com/tomoncle/ormbridge/filter"
)

var (
	ErrNotFound            = errors.New("repository: not found")
	ErrUnknownColumn       = errors.New("repository: unknown column")
	ErrUnknownRelation     = errors.New("repository: unknown relation")
	ErrInvalidSession      = errors.New("repository: invalid session")
	ErrNoValues            = errors.New("repository: no values to update")
	ErrDuplicateKey        = errors.New("repository: duplicate key")
	ErrConstraintViolation = errors.New("repository: constraint violation")
	ErrUnsupportedValue    = errors.New("repository: unsupported filter value")
	ErrNotModel            = errors.New("repository: type is not a model")
)

// NotFoundError is returned by GetOrNotFound.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DefaultNotFoundMessage is used by GetOrNotFound when no message is given.
const DefaultNotFoundMessage = "Not found."

// Translate maps driver and ORM errors onto the package sentinels. The
// original error stays in the chain.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if isOwn(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	ok, code := database.IsSqlError(err)
	if !ok {
		return err
	}
	switch {
	case code == database.NoRowsErr:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case code == database.DuplicateKeyErr:
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	case code.IsConstraint():
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	case code == database.NoColumnErr:
		return fmt.Errorf("%w: %w", ErrUnknownColumn, err)
	}
	return err
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(Translate(err), ErrNotFound)
}

// expected reports errors caused by the caller rather than the database.
func expected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnknownColumn) ||
		errors.Is(err, ErrUnknownRelation) ||
		errors.Is(err, ErrNoValues) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrUnsupportedValue) ||
		errors.Is(err, filter.ErrEmptySeq) ||
		errors.Is(err, filter.ErrEmptyColumn) ||
		errors.Is(err, filter.ErrInvalidOperator) ||
		errors.Is(err, filter.ErrInvalidMode) ||
		errors.Is(err, filter.ErrInvalidValue) ||
		errors.Is(err, filter.ErrNilExpression)
}

func isOwn(err error) bool {
	return expected(err) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrNotModel)
}
