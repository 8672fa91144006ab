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
	"testing"

	"github.com/stretchr/testify/assert"
)

type regA struct{ ID int64 }

type regB struct{ ID int64 }

type regC struct{ ID int64 }

func TestModelRegistry(t *testing.T) {
	r := NewModelRegistry()
	r.Register(NewModelAdapter(&regA{}, 2))
	r.Register(NewModelAdapter(&regB{}, 1))
	r.Register(NewModelAdapter(&regC{}, 2))

	assert.Equal(t, []any{&regB{}, &regA{}, &regC{}}, instances(r.Models()))

	r.Register(NewModelAdapter(&regA{}, 0))
	models := r.Models()
	assert.Len(t, models, 3)
	assert.Equal(t, &regA{}, models[0].Instance())
	assert.Equal(t, 0, models[0].Priority())

	r.Reset()
	assert.Empty(t, r.Models())
}

func TestDefaultRegistry(t *testing.T) {
	ResetRegisteredModels()
	t.Cleanup(ResetRegisteredModels)

	RegisteredModel(NewModelAdapter(&regC{}, 5))
	RegisteredModel(NewModelAdapter(&regA{}, 1))
	assert.Equal(t, []any{&regA{}, &regC{}}, RegisteredModelInstances())
	assert.Len(t, GetRegisteredModels(), 2)
}
