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
	"strings"
)

// Seq combines filters and nested sequences with a single Mode.
type Seq struct {
	Mode  Mode
	Items []Expression
}

// NewSeq builds a sequence and rejects an empty item list.
func NewSeq(mode Mode, items ...Expression) (*Seq, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(mode))
	}
	if len(items) == 0 {
		return nil, ErrEmptySeq
	}
	return &Seq{Mode: mode, Items: items}, nil
}

// And joins items with AND. Emptiness is reported by Validate.
func And(items ...Expression) *Seq {
	return &Seq{Mode: ModeAnd, Items: items}
}

// Or joins items with OR. Emptiness is reported by Validate.
func Or(items ...Expression) *Seq {
	return &Seq{Mode: ModeOr, Items: items}
}

// Add appends items and returns s.
func (s *Seq) Add(items ...Expression) *Seq {
	s.Items = append(s.Items, items...)
	return s
}

func (*Seq) expression() {}

// Validate checks the mode and every item recursively.
func (s *Seq) Validate() error {
	if s == nil {
		return ErrNilExpression
	}
	if !s.Mode.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(s.Mode))
	}
	if len(s.Items) == 0 {
		return ErrEmptySeq
	}
	for i, item := range s.Items {
		if item == nil {
			return fmt.Errorf("item %d: %w", i, ErrNilExpression)
		}
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func (s *Seq) String() string {
	if s == nil {
		return "<nil>"
	}
	parts := make([]string, len(s.Items))
	for i, item := range s.Items {
		if item == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, " "+s.Mode.SQL()+" ") + ")"
}
