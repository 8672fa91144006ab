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
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textCompiler renders trees as plain text so the recursion can be checked
// without a database.
type textCompiler struct {
	combines int
}

func (c *textCompiler) Filter(f *Filter) (string, error) {
	if f.Column == "bad" {
		return "", fmt.Errorf("unknown column %q", f.Column)
	}
	return fmt.Sprintf("%s %s %v", f.Column, f.Operator, f.Value), nil
}

func (c *textCompiler) Combine(mode Mode, items []string) (string, error) {
	c.combines++
	return "(" + strings.Join(items, " "+mode.SQL()+" ") + ")", nil
}

func TestOperatorNumbersAreStable(t *testing.T) {
	assert.Equal(t, 0, Eq.Number())
	assert.Equal(t, 1, Lt.Number())
	assert.Equal(t, 2, Le.Number())
	assert.Equal(t, 3, Gt.Number())
	assert.Equal(t, 4, Ge.Number())
	assert.Equal(t, 5, In.Number())
	assert.Equal(t, 6, Is.Number())
	assert.Equal(t, 0, ModeAnd.Number())
	assert.Equal(t, 1, ModeOr.Number())
}

func TestOperatorEnum(t *testing.T) {
	for _, op := range Operators() {
		assert.True(t, op.IsValid())
		parsed, err := ParseOperator(op.Name())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
		assert.NotEqual(t, "unknown", op.Desc())
	}

	bad := Operator(99)
	assert.False(t, bad.IsValid())
	assert.Equal(t, -1, bad.Number())
	assert.Equal(t, "unknown", bad.String())

	_, err := ParseOperator("between")
	assert.ErrorIs(t, err, ErrInvalidOperator)

	op, err := ParseOperator("in_")
	require.NoError(t, err)
	assert.Equal(t, In, op)
}

func TestModeText(t *testing.T) {
	b, err := json.Marshal(map[string]Mode{"mode": ModeOr})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"or"}`, string(b))

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("AND")))
	assert.Equal(t, ModeAnd, m)
	assert.ErrorIs(t, m.UnmarshalText([]byte("xor")), ErrInvalidMode)
}

func TestFilterJSON(t *testing.T) {
	var f Filter
	require.NoError(t, json.Unmarshal([]byte(`{"column":"age","value":18,"operator":"ge"}`), &f))
	assert.Equal(t, "age", f.Column)
	assert.Equal(t, Ge, f.Operator)
	assert.EqualValues(t, 18, f.Value)
}

func TestTwoStepConstruction(t *testing.T) {
	age := New("age")
	assert.Equal(t, Eq, age.Operator)
	assert.Nil(t, age.Value)

	got := age.Set(30, Gt)
	assert.Same(t, age, got)
	assert.Equal(t, Gt, age.Operator)
	assert.Equal(t, 30, age.Value)
}

func TestFilterValidate(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		err    error
	}{
		{"eq", Equal("name", "bob"), nil},
		{"empty column", Equal(" ", 1), ErrEmptyColumn},
		{"bad operator", Where("name", Operator(42), 1), ErrInvalidOperator},
		{"in slice", OneOf("id", []int{1, 2}), nil},
		{"in array", OneOf("id", [2]string{"a", "b"}), nil},
		{"in scalar", OneOf("id", 1), ErrInvalidValue},
		{"in nil", NoneOf("id", nil), ErrInvalidValue},
		{"is null", IsNull("deleted_at"), nil},
		{"is bool", Where("is_deleted", Is, false), nil},
		{"is number", Where("is_deleted", Is, 0), ErrInvalidValue},
		{"like string", HasPrefix("name", "a"), nil},
		{"like number", Where("name", Contains, 5), ErrInvalidValue},
		{"nil filter", nil, ErrNilExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewSeqRejectsEmpty(t *testing.T) {
	_, err := NewSeq(ModeAnd)
	assert.ErrorIs(t, err, ErrEmptySeq)

	_, err = NewSeq(Mode(7), Equal("a", 1))
	assert.ErrorIs(t, err, ErrInvalidMode)

	assert.ErrorIs(t, Or().Validate(), ErrEmptySeq)
	assert.ErrorIs(t, And(Equal("a", 1), Or()).Validate(), ErrEmptySeq)
}

func TestSeqConstructorsSetMode(t *testing.T) {
	assert.Equal(t, ModeAnd, And(Equal("a", 1)).Mode)
	assert.Equal(t, ModeOr, Or(Equal("a", 1)).Mode)
	assert.Equal(t, "AND", And().Mode.SQL())
	assert.Equal(t, "OR", Or().Mode.SQL())
}

func TestCompileSingleItemCollapses(t *testing.T) {
	c := &textCompiler{}
	got, err := Compile[string](And(Equal("name", "bob")), c)
	require.NoError(t, err)
	assert.Equal(t, "name eq bob", got)
	assert.Zero(t, c.combines)
}

func TestCompileNested(t *testing.T) {
	expr := And(
		Equal("team_id", 1),
		Or(Less("age", 18), Greater("age", 65)),
		Or(Equal("name", "x")),
	)
	c := &textCompiler{}
	got, err := Compile[string](expr, c)
	require.NoError(t, err)
	assert.Equal(t, "(team_id eq 1 AND (age lt 18 OR age gt 65) AND name eq x)", got)
	assert.Equal(t, 2, c.combines)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile[string](nil, &textCompiler{})
	assert.ErrorIs(t, err, ErrNilExpression)

	_, err = Compile[string](And(), &textCompiler{})
	assert.ErrorIs(t, err, ErrEmptySeq)

	_, err = Compile[string](Or(Equal("a", 1), Equal("bad", 2)), &textCompiler{})
	assert.EqualError(t, err, `unknown column "bad"`)
}

func TestWalkAndColumns(t *testing.T) {
	expr := Or(Equal("a", 1), And(Equal("b", 2), Equal("a", 3)))
	var n int
	require.NoError(t, Walk(expr, func(*Filter) error { n++; return nil }))
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b"}, Columns(expr))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%ab%", LikePattern(Contains, "ab"))
	assert.Equal(t, "ab%", LikePattern(StartsWith, "ab"))
	assert.Equal(t, "%ab", LikePattern(EndsWith, "ab"))
	assert.Equal(t, "a_b", LikePattern(Like, "a_b"))
	assert.Equal(t, "a%", HasPrefix("name", "a").Pattern())
}

func TestValues(t *testing.T) {
	assert.Equal(t, []any{1, 2}, Values([]int{1, 2}))
	assert.Equal(t, []any{"x"}, Values([]any{"x"}))
	assert.Nil(t, Values(3))
	assert.Empty(t, Values([]string{}))
}

func TestSeqString(t *testing.T) {
	s, err := NewSeq(ModeOr, Equal("a", 1), IsNull("b"))
	require.NoError(t, err)
	assert.Equal(t, "(a eq 1 OR b is <nil>)", s.String())
}
