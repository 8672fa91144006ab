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

import "errors"

var (
	ErrEmptySeq        = errors.New("filter: sequence has no items")
	ErrEmptyColumn     = errors.New("filter: column is empty")
	ErrInvalidOperator = errors.New("filter: invalid operator")
	ErrInvalidMode     = errors.New("filter: invalid mode")
	ErrInvalidValue    = errors.New("filter: invalid value for operator")
	ErrNilExpression   = errors.New("filter: nil expression")
)
