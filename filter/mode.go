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

// Mode is the boolean connective joining the items of a Seq.
type Mode int

const (
	ModeAnd Mode = iota
	ModeOr
)

// Modes lists every valid mode.
func Modes() []Mode {
	return []Mode{ModeAnd, ModeOr}
}

func (m Mode) IsValid() bool {
	return m == ModeAnd || m == ModeOr
}

func (m Mode) Number() int {
	if !m.IsValid() {
		return types.IllegalValue
	}
	return int(m)
}

func (m Mode) Name() string {
	switch m {
	case ModeAnd:
		return "and"
	case ModeOr:
		return "or"
	}
	return types.IllegalName
}

func (m Mode) Desc() string {
	switch m {
	case ModeAnd:
		return "all items must match"
	case ModeOr:
		return "any item must match"
	}
	return types.IllegalDesc
}

func (m Mode) String() string {
	return m.Name()
}

// SQL returns the SQL keyword for m.
func (m Mode) SQL() string {
	if m == ModeOr {
		return "OR"
	}
	return "AND"
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.Name()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode resolves a mode by name. "and_" and "or_" are accepted too.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "and_":
		return ModeAnd, nil
	case "or_":
		return ModeOr, nil
	}
	if m, ok := types.LookupEnum(Modes(), name); ok {
		return m, nil
	}
	return Mode(types.IllegalValue), fmt.Errorf("%w: %q", ErrInvalidMode, name)
}
