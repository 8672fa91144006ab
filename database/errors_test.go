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

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsSqlError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		want SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"plain", errors.New("boom"), false, UnknownErr},
		{"no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), true, NoRowsErr},
		{"gorm not found", gorm.ErrRecordNotFound, true, NoRowsErr},
		{"gorm duplicated", gorm.ErrDuplicatedKey, true, DuplicateKeyErr},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, true, ForeignKeyViolationErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{"mysql no table", &mysql.MySQLError{Number: 1146}, true, NoTableErr},
		{"mysql unknown", &mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{"pq duplicate", &pq.Error{Code: "23505"}, true, DuplicateKeyErr},
		{"pq not null", fmt.Errorf("insert: %w", &pq.Error{Code: "23502"}), true, NotNullViolationErr},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, true, ForeignKeyViolationErr},
		{"pgx unknown", &pgconn.PgError{Code: "XX000"}, true, UnknownErr},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.name (2067)"), true, DuplicateKeyErr},
		{"sqlite no table", errors.New("SQL logic error: no such table: users (1)"), true, NoTableErr},
		{"sqlite no column", errors.New("no such column: nope"), true, NoColumnErr},
		{"sqlite not null", errors.New("NOT NULL constraint failed: users.name"), true, NotNullViolationErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is, code := IsSqlError(tc.err)
			assert.Equal(t, tc.is, is)
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestSQLError(t *testing.T) {
	assert.Equal(t, "duplicate_key", DuplicateKeyErr.String())
	assert.Equal(t, "unknown", SQLError(-1).String())
	assert.Equal(t, "unknown", SQLError(100).String())

	assert.True(t, DuplicateKeyErr.IsConstraint())
	assert.True(t, ForeignKeyViolationErr.IsConstraint())
	assert.False(t, NoTableErr.IsConstraint())
}
