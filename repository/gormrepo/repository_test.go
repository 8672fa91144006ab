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
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/driver/sqliteshim"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tomoncle/ormbridge/filter"
	"github.com/tomoncle/ormbridge/repository"
	"github.com/tomoncle/ormbridge/types"
)

type Team struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"not null"`
}

type Post struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"not null"`
	Title  string
}

type User struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"not null;uniqueIndex"`
	Email     *string
	Age       int   `gorm:"not null"`
	Active    bool  `gorm:"not null"`
	IsDeleted bool  `gorm:"not null"`
	TeamID    int64 `gorm:"not null"`
	Team      *Team
	Posts     []Post
}

func str(s string) *string { return &s }

type fixture struct {
	db    *gorm.DB
	repo  *Repository[User]
	users map[string]*User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })

	db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: sqldb, DriverName: sqliteshim.ShimName}), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Team{}, &User{}, &Post{}))

	teams := []*Team{{Name: "core"}, {Name: "infra"}}
	require.NoError(t, db.Create(&teams).Error)
	users := []*User{
		{Name: "alice", Email: str("alice@example.com"), Age: 30, Active: true, TeamID: teams[0].ID},
		{Name: "bob", Age: 25, TeamID: teams[0].ID},
		{Name: "carol", Email: str("carol@example.com"), Age: 35, Active: true, TeamID: teams[1].ID},
		{Name: "dave", Age: 20, Active: true, IsDeleted: true, TeamID: teams[1].ID},
	}
	require.NoError(t, db.Create(&users).Error)
	require.NoError(t, db.Create(&[]Post{
		{UserID: users[0].ID, Title: "hello"},
		{UserID: users[0].ID, Title: "again"},
	}).Error)

	f := &fixture{db: db, users: map[string]*User{}}
	for _, u := range users {
		f.users[u.Name] = u
	}
	f.repo, err = New[User](db, repository.Config{SoftDeletable: true})
	require.NoError(t, err)
	return f
}

func names(users []*User) []string {
	out := make([]string, 0, len(users))
	return append(out, repository.Convert(users, func(u *User) string { return u.Name })...)
}

func TestNew(t *testing.T) {
	f := setup(t)

	_, err := New[User](nil, repository.Config{})
	assert.ErrorIs(t, err, gorm.ErrInvalidDB)

	_, err = New[string](f.db, repository.Config{})
	assert.ErrorIs(t, err, repository.ErrNotModel)

	_, err = New[Team](f.db, repository.Config{SoftDeletable: true})
	assert.ErrorIs(t, err, repository.ErrUnknownColumn)

	assert.Panics(t, func() { MustNew[Team](f.db, repository.Config{PKField: "missing"}) })
	assert.Equal(t, repository.BackendGorm, f.repo.Backend())
	assert.Equal(t, "users", f.repo.Schema().Table)
}

func TestCreateAndGet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	erin, err := f.repo.Create(ctx, &User{Name: "erin", Age: 41, TeamID: 1})
	require.NoError(t, err)
	assert.NotZero(t, erin.ID)

	got, err := f.repo.GetByPK(ctx, erin.ID)
	require.NoError(t, err)
	assert.Equal(t, "erin", got.Name)

	got, err = f.repo.GetByField(ctx, "Name", "alice")
	require.NoError(t, err)
	assert.Equal(t, f.users["alice"].ID, got.ID)

	_, err = f.repo.GetByPK(ctx, int64(999))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	got, err = f.repo.GetByFilters(ctx, filter.Equal("name", "zoe"), repository.NonStrict())
	assert.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, f.repo.CreateMany(ctx, []*User{{Name: "frank", TeamID: 2}, {Name: "gina", TeamID: 2}}))
	n, err := f.repo.CountByFilters(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = f.repo.Create(ctx, &User{Name: "alice", TeamID: 1})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}

func TestFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		expr filter.Expression
		want []string
	}{
		{"eq", filter.Equal("name", "bob"), []string{"bob"}},
		{"ne", filter.NotEqual("name", "bob"), []string{"alice", "carol"}},
		{"lt", filter.Less("age", 30), []string{"bob"}},
		{"le", filter.LessOrEqual("age", 30), []string{"alice", "bob"}},
		{"gt", filter.Greater("age", 30), []string{"carol"}},
		{"ge", filter.GreaterOrEqual("age", 35), []string{"carol"}},
		{"in", filter.OneOf("name", []string{"alice", "dave"}), []string{"alice"}},
		{"in empty", filter.OneOf("name", []string{}), []string{}},
		{"not in", filter.NoneOf("age", []int{25, 35}), []string{"alice"}},
		{"not in empty", filter.NoneOf("name", []string{}), []string{"alice", "bob", "carol"}},
		{"is null", filter.IsNull("email"), []string{"bob"}},
		{"not null", filter.NotNull("email"), []string{"alice", "carol"}},
		{"eq nil", filter.Equal("email", nil), []string{"bob"}},
		{"ne nil", filter.NotEqual("email", nil), []string{"alice", "carol"}},
		{"is false", filter.Where("active", filter.Is, false), []string{"bob"}},
		{"is not true", filter.Where("active", filter.IsNot, true), []string{"bob"}},
		{"like", filter.Matches("name", "%o%"), []string{"bob", "carol"}},
		{"ilike", filter.MatchesFold("name", "ALI%"), []string{"alice"}},
		{"contains", filter.HasSubstring("name", "ar"), []string{"carol"}},
		{"startswith", filter.HasPrefix("name", "c"), []string{"carol"}},
		{"endswith", filter.HasSuffix("name", "ob"), []string{"bob"}},
		{"nested", filter.And(
			filter.Greater("age", 24),
			filter.Or(filter.IsNull("email"), filter.HasPrefix("name", "c")),
		), []string{"bob", "carol"}},
		{"or of ands", filter.Or(
			filter.And(filter.Equal("age", 30), filter.Equal("active", true)),
			filter.And(filter.Equal("age", 25), filter.Equal("active", false)),
		), []string{"alice", "bob"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.repo.AllByFilters(ctx, tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
		})
	}

	_, err := f.repo.AllByFilters(ctx, filter.Equal("nope", 1))
	assert.ErrorIs(t, err, repository.ErrUnknownColumn)
	_, err = f.repo.AllByFilters(ctx, filter.Where("name", filter.Like, 1))
	assert.ErrorIs(t, err, filter.ErrInvalidValue)
}

func TestSoftDeleteScope(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dave := f.users["dave"]

	_, err := f.repo.GetByPK(ctx, dave.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := f.repo.GetByPK(ctx, dave.ID, repository.WithExtra(types.DefaultExtra().WithSoftDeleted()))
	require.NoError(t, err)
	assert.Equal(t, "dave", got.Name)

	n, err := f.repo.Update(ctx, dave.ID, map[string]any{"age": 21})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.repo.Delete(ctx, dave.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := f.repo.CountByFilters(ctx, nil, repository.WithExtra(types.DefaultExtra().WithSoftDeleted()))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestOrderingAndRelations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	got, err := f.repo.All(ctx, repository.WithExtra(types.DefaultExtra().OrderBy("-age")))
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice", "bob"}, names(got))

	extra := types.DefaultExtra().Related("Team", "Posts").WithForUpdate()
	alice, err := f.repo.GetByField(ctx, "name", "alice", repository.WithExtra(extra))
	require.NoError(t, err)
	require.NotNil(t, alice.Team)
	assert.Equal(t, "core", alice.Team.Name)
	assert.Len(t, alice.Posts, 2)

	_, err = f.repo.All(ctx, repository.WithExtra(types.DefaultExtra().Related("Manager")))
	assert.ErrorIs(t, err, repository.ErrUnknownRelation)
}

func TestUpdateAndDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice, bob := f.users["alice"], f.users["bob"]

	n, err := f.repo.Update(ctx, alice.ID, map[string]any{"Age": 31, "email": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err := f.repo.GetByPK(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 31, got.Age)
	assert.Nil(t, got.Email)

	_, err = f.repo.Update(ctx, alice.ID, nil)
	assert.ErrorIs(t, err, repository.ErrNoValues)
	_, err = f.repo.Update(ctx, alice.ID, map[string]any{"nope": 1})
	assert.ErrorIs(t, err, repository.ErrUnknownColumn)

	n, err = f.repo.MultiUpdate(ctx, repository.PKs(alice.ID, bob.ID), map[string]any{"active": false})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	inactive, err := f.repo.CountByField(ctx, "active", false)
	require.NoError(t, err)
	assert.Equal(t, 2, inactive)

	n, err = f.repo.Delete(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.repo.DeleteByField(ctx, "name", "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := f.repo.ExistsByFilters(ctx, filter.OneOf("name", []string{"bob", "carol"}))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.repo.ExistsByField(ctx, "name", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	rest, err := f.repo.AllByPKs(ctx, repository.PKs(alice.ID, bob.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names(rest))
}

func TestPage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	page, err := f.repo.Page(ctx, repository.NewPageRequestWithOrders(2, 2, "-age"))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, []string{"bob"}, names(page.Items))

	page, err = f.repo.Page(ctx, repository.NewPageRequestWithFilters(1, 2, filter.NotNull("email")))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, []string{"alice", "carol"}, names(page.Items))
}

func TestUpsert(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := f.users["alice"]

	err := f.repo.Upsert(ctx, []string{"age"}, nil, []*User{
		{ID: alice.ID, Name: "alice-renamed", Age: 50, TeamID: alice.TeamID},
	})
	require.NoError(t, err)
	got, err := f.repo.GetByPK(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Age)
	assert.Equal(t, "alice", got.Name)

	err = f.repo.Upsert(ctx, []string{"age"}, []string{"name"}, []*User{{Name: "bob", Age: 26, TeamID: 1}})
	require.NoError(t, err)
	got, err = f.repo.GetByField(ctx, "name", "bob")
	require.NoError(t, err)
	assert.Equal(t, 26, got.Age)

	assert.ErrorIs(t, f.repo.Upsert(ctx, nil, nil, []*User{alice}), repository.ErrNoValues)
}

func TestTransactions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	errRollback := errors.New("rollback")

	err := f.repo.WithTx(ctx, func(ctx context.Context, tx repository.Repository[User]) error {
		if _, err := tx.Create(ctx, &User{Name: "erin", TeamID: 1}); err != nil {
			return err
		}
		return errRollback
	})
	assert.ErrorIs(t, err, errRollback)
	ok, err := f.repo.ExistsByField(ctx, "name", "erin")
	require.NoError(t, err)
	assert.False(t, ok)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.repo.Update(ctx, f.users["bob"].ID, map[string]any{"age": 60}, repository.WithSession(tx))
		return err
	})
	require.NoError(t, err)
	bob, err := f.repo.GetByPK(ctx, f.users["bob"].ID)
	require.NoError(t, err)
	assert.Equal(t, 60, bob.Age)

	_, err = f.repo.All(ctx, repository.WithSession(f.db.Statement))
	assert.ErrorIs(t, err, repository.ErrInvalidSession)

	txRepo := MustNew[User](f.db, repository.Config{SoftDeletable: true}, WithSessionFactory(TxSessionFactory(f.db)))
	n, err := txRepo.CountByFilters(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgresRendering(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=none dbname=none sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	require.NoError(t, err)
	r := MustNew[User](db, repository.Config{SoftDeletable: true})

	extra := types.DefaultExtra().WithForUpdate().Related("Team").OrderBy("-age")
	expr := filter.And(filter.MatchesFold("name", "a%"), filter.Where("active", filter.Is, true), filter.OneOf("id", []int{}))
	scope, err := r.scope(expr, repository.PlanFor(r.cfg, extra, repository.KindSelect))
	require.NoError(t, err)

	query := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(new(User)).Scopes(scope).Find(&[]*User{})
	})
	assert.Contains(t, query, `"users"."name" ILIKE 'a%'`)
	assert.Contains(t, query, `"users"."active" IS TRUE`)
	assert.Contains(t, query, `1 = 0`)
	assert.Contains(t, query, `"users"."is_deleted" = false`)
	assert.Contains(t, query, `ORDER BY "users"."age" DESC`)
	assert.Contains(t, query, `FOR UPDATE OF "users"`)
}
