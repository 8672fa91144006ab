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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var bunSqlSilentMode atomic.Bool

// EnableBunSqlSilent mutes the query hooks regardless of their settings.
// It is safe to call while queries run on other goroutines.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var operationBackgrounds = map[string]*color.Color{
	"SELECT": color.New(color.BgGreen, color.FgHiWhite),
	"INSERT": color.New(color.BgBlue, color.FgHiWhite),
	"UPDATE": color.New(color.BgYellow, color.FgHiWhite),
	"DELETE": color.New(color.BgMagenta, color.FgHiWhite),
}

func colorize(palette map[string]*color.Color, fallback *color.Color, event *bun.QueryEvent) string {
	c, ok := palette[event.Operation()]
	if !ok {
		c = fallback
	}
	return c.Sprint(event.Query)
}

// QueryHook prints executed queries colored by operation.
type QueryHook struct {
	envName string
	enabled bool
	verbose bool
	writer  io.Writer
}

// QueryHookOption configures a QueryHook.
type QueryHookOption func(*QueryHook)

// WithHookEnabled turns printing on or off.
func WithHookEnabled(on bool) QueryHookOption {
	return func(h *QueryHook) { h.enabled = on }
}

// WithHookVerbose prints successful queries too, not only failures.
func WithHookVerbose(on bool) QueryHookOption {
	return func(h *QueryHook) { h.verbose = on }
}

// WithHookWriter redirects output, stderr by default.
func WithHookWriter(w io.Writer) QueryHookOption {
	return func(h *QueryHook) { h.writer = w }
}

// WithHookEnv names the environment variable overriding the settings:
// "0" or empty disables, "1" enables, "2" enables verbose output.
func WithHookEnv(name string) QueryHookOption {
	return func(h *QueryHook) { h.envName = name }
}

// NewQueryHook returns a verbose hook reading ORMBRIDGE_QUERY_LOG.
func NewQueryHook(opts ...QueryHookOption) *QueryHook {
	h := &QueryHook{
		envName: "ORMBRIDGE_QUERY_LOG",
		verbose: true,
		writer:  os.Stderr,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ bun.QueryHook = (*QueryHook)(nil)

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() {
		return
	}
	enabled := h.enabled
	verbose := h.verbose
	if env, ok := os.LookupEnv(h.envName); ok && h.envName != "" {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}

	if !enabled {
		return
	}

	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	dur := now.Sub(event.StartTime)

	args := []any{
		now.Format("2006-01-02 15:04:05.000"),
		color.CyanString("%8s", "[BUN]"),
		fmt.Sprintf("%17s", dur.Round(time.Microsecond)),
		"  ", colorize(operationColors, color.New(color.FgRed), event),
	}

	if event.Err != nil {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args,
			"\t",
			color.New(color.BgRed).Sprintf(" %s ", typ+": "+event.Err.Error()),
		)
	}
	_, _ = fmt.Fprintln(h.writer, args...)
}

// SlowQueryHook reports successful queries slower than a threshold through
// a Logger, or a colored line on its writer when no logger is set.
type SlowQueryHook struct {
	envName  string
	slowTime time.Duration
	logger   Logger
	writer   io.Writer
}

// NewSlowQueryHook returns a hook reporting queries slower than slowTime.
// ORMBRIDGE_SLOW_QUERY_LOG=0 disables it.
func NewSlowQueryHook(slowTime time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{
		envName:  "ORMBRIDGE_SLOW_QUERY_LOG",
		slowTime: slowTime,
		logger:   logger,
		writer:   os.Stderr,
	}
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode.Load() || event.Err != nil {
		return
	}
	if env, ok := os.LookupEnv(h.envName); ok && strings.TrimSpace(env) == "0" {
		return
	}

	duration := time.Since(event.StartTime)
	if duration <= h.slowTime {
		return
	}
	if h.logger != nil {
		h.logger.Warn("Slow query", "duration", duration, "query", event.Query)
		return
	}
	_, _ = fmt.Fprintln(h.writer,
		time.Now().Format("2006-01-02 15:04:05.000"),
		color.YellowString("%8s", "[SLOW]"),
		fmt.Sprintf("%17s", duration.Round(time.Microsecond)),
		"  ", colorize(operationBackgrounds, color.New(color.BgRed, color.FgHiWhite), event),
	)
}
