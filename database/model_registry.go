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
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = NewModelRegistry()

// SQLModel is a model whose table is created by migrations. Instance returns
// a struct pointer both ORMs can map; lower Priority values are created first.
type SQLModel interface {
	Instance() any
	Priority() int
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
	Reset()
}

type modelRegistry struct {
	models map[reflect.Type]SQLModel
	order  []reflect.Type
	mutex  sync.RWMutex
}

// NewModelRegistry returns an empty registry. Registering the same struct
// type twice replaces the first registration.
func NewModelRegistry() ModelRegistry {
	return &modelRegistry{models: make(map[reflect.Type]SQLModel)}
}

func (r *modelRegistry) Register(model SQLModel) {
	typ := reflect.TypeOf(model.Instance())
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.models[typ]; !ok {
		r.order = append(r.order, typ)
	}
	r.models[typ] = model
}

// Models returns models sorted by priority, ties kept in registration order.
func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, 0, len(r.order))
	for _, typ := range r.order {
		result = append(result, r.models[typ])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

func (r *modelRegistry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.models = make(map[reflect.Type]SQLModel)
	r.order = nil
}

type ModelAdapter struct {
	instance any
	priority int
}

// NewModelAdapter wraps a struct pointer and priority into an SQLModel.
func NewModelAdapter(instance any, priority int) SQLModel {
	return &ModelAdapter{instance: instance, priority: priority}
}

func (a *ModelAdapter) Instance() any { return a.instance }

func (a *ModelAdapter) Priority() int { return a.priority }

// GetRegisteredModels returns the models of the default registry.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.Models()
}

// RegisteredModel adds a model to the default registry.
func RegisteredModel(model SQLModel) {
	defaultRegistry.Register(model)
}

// ResetRegisteredModels empties the default registry.
func ResetRegisteredModels() {
	defaultRegistry.Reset()
}

// RegisteredModelInstances returns the instances of the default registry in
// creation order.
func RegisteredModelInstances() []any {
	return instances(GetRegisteredModels())
}

func instances(models []SQLModel) []any {
	out := make([]any, len(models))
	for i, model := range models {
		out[i] = model.Instance()
	}
	return out
}
