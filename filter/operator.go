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
	"fmt"

	"github.com/tomoncle/ormbridge/types"
)

// Operator is a comparison applied by a Filter.
type Operator int

// The first seven numbers are stable and must not be reordered.
const (
	Eq Operator = iota
	Lt
	Le
	Gt
	Ge
	In
	Is
	Ne
	NotIn
	IsNot
	Like
	ILike
	Contains
	StartsWith
	EndsWith
)

var operatorNames = [...]string{
	Eq:         "eq",
	Lt:         "lt",
	Le:         "le",
	Gt:         "gt",
	Ge:         "ge",
	In:         "in",
	Is:         "is",
	Ne:         "ne",
	NotIn:      "not_in",
	IsNot:      "is_not",
	Like:       "like",
	ILike:      "ilike",
	Contains:   "contains",
	StartsWith: "startswith",
	EndsWith:   "endswith",
}

var operatorDescs = [...]string{
	Eq:         "equal to",
	Lt:         "less than",
	Le:         "less than or equal to",
	Gt:         "greater than",
	Ge:         "greater than or equal to",
	In:         "member of",
	Is:         "identical to",
	Ne:         "not equal to",
	NotIn:      "not member of",
	IsNot:      "not identical to",
	Like:       "matches pattern",
	ILike:      "matches pattern ignoring case",
	Contains:   "contains substring",
	StartsWith: "starts with",
	EndsWith:   "ends with",
}

// Operators lists every valid operator in numeric order.
func Operators() []Operator {
	ops := make([]Operator, len(operatorNames))
	for i := range operatorNames {
		ops[i] = Operator(i)
	}
	return ops
}

func (o Operator) IsValid() bool {
	return o >= Eq && int(o) < len(operatorNames)
}

func (o Operator) Number() int {
	if !o.IsValid() {
		return types.IllegalValue
	}
	return int(o)
}

func (o Operator) Name() string {
	if !o.IsValid() {
		return types.IllegalName
	}
	return operatorNames[o]
}

func (o Operator) Desc() string {
	if !o.IsValid() {
		return types.IllegalDesc
	}
	return operatorDescs[o]
}

func (o Operator) String() string {
	return o.Name()
}

// IsLike reports whether o is a pattern-matching operator.
func (o Operator) IsLike() bool {
	switch o {
	case Like, ILike, Contains, StartsWith, EndsWith:
		return true
	}
	return false
}

// IsSet reports whether o takes a list of values.
func (o Operator) IsSet() bool {
	return o == In || o == NotIn
}

func (o Operator) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOperator, int(o))
	}
	return []byte(o.Name()), nil
}

func (o *Operator) UnmarshalText(text []byte) error {
	op, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// ParseOperator resolves an operator by name. The aliases "in_" and "is_"
// are accepted as well.
func ParseOperator(name string) (Operator, error) {
	switch name {
	case "in_":
		return In, nil
	case "is_":
		return Is, nil
	}
	if op, ok := types.LookupEnum(Operators(), name); ok {
		return op, nil
	}
	return Operator(types.IllegalValue), fmt.Errorf("%w: %q", ErrInvalidOperator, name)
}
