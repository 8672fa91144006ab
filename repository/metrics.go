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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/tomoncle/ormbridge/repository"

// Metric names.
const (
	MetricOperations = "ormbridge.repository.operations"
	MetricDuration   = "ormbridge.repository.duration"
)

type instruments struct {
	operations metric.Int64Counter
	duration   metric.Float64Histogram
}

func newInstruments(meter metric.Meter) *instruments {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	fallback := noop.NewMeterProvider().Meter(meterName)

	ops, err := meter.Int64Counter(MetricOperations,
		metric.WithDescription("Repository operations by backend, model, operation and outcome."),
		metric.WithUnit("{operation}"))
	if err != nil {
		ops, _ = fallback.Int64Counter(MetricOperations)
	}
	dur, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Repository operation latency."),
		metric.WithUnit("s"))
	if err != nil {
		dur, _ = fallback.Float64Histogram(MetricDuration)
	}
	return &instruments{operations: ops, duration: dur}
}

func (i *instruments) record(ctx context.Context, since time.Time, attrs ...attribute.KeyValue) {
	set := metric.WithAttributes(attrs...)
	i.operations.Add(ctx, 1, set)
	i.duration.Record(ctx, time.Since(since).Seconds(), set)
}
