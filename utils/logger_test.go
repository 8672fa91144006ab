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

package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("verbose"))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("UTILS_TEST_STR", "value")
	t.Setenv("UTILS_TEST_BOOL", "true")
	t.Setenv("UTILS_TEST_BAD", "maybe")
	assert.Equal(t, "value", EnvDefaultString("UTILS_TEST_STR", "def"))
	assert.Equal(t, "def", EnvDefaultString("UTILS_TEST_MISSING", "def"))
	assert.True(t, EnvDefaultBool("UTILS_TEST_BOOL", false))
	assert.True(t, EnvDefaultBool("UTILS_TEST_BAD", true))
	assert.False(t, EnvDefaultBool("UTILS_TEST_MISSING", false))
}

func entryOf(msg string, data logrus.Fields) *logrus.Entry {
	return &logrus.Entry{
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: msg,
		Data:    data,
	}
}

func TestTextLogFormatter(t *testing.T) {
	f := &TextLogFormatter{LoggerName: "REPOSITORY", NameWidth: 4, DisableColors: true}
	out, err := f.Format(entryOf("slow query", logrus.Fields{"table": "users", "rows": 2}))
	require.NoError(t, err)
	line := string(out)
	assert.True(t, strings.HasPrefix(line, "2025-01-02 03:04:05.000 WARNING "))
	assert.Contains(t, line, "--- [REPO] : slow query rows=2 table=users\n")
}

func TestJSONLogFormatter(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "DATABASE"}
	out, err := f.Format(entryOf("failed", logrus.Fields{"error": errors.New("boom")}))
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "warning", rec["level"])
	assert.Equal(t, "DATABASE", rec["logger"])
	assert.Equal(t, "failed", rec["message"])
	assert.Equal(t, map[string]any{"error": "boom"}, rec["fields"])
}

func TestLoggerRegistry(t *testing.T) {
	var buf bytes.Buffer
	ConfigureOutput(&buf)
	t.Cleanup(func() { ConfigureOutput(os.Stdout) })

	lg := GetLogger("UTILS_TEST")
	assert.Same(t, lg, GetLogger("UTILS_TEST"))
	assert.True(t, SetLoggerLevel("UTILS_TEST", "error"))
	assert.False(t, SetLoggerLevel("UTILS_MISSING", "error"))

	lg.Warn("hidden")
	assert.Empty(t, buf.String())
	lg.Error("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "[UTILS_TEST]")
}
