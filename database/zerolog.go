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
	"fmt"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger returns a Logger writing through logger.
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

func (l *ZerologLogger) SetLevel(level LogLevel) {
	switch level {
	case LogLevelDebug:
		l.logger = l.logger.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		l.logger = l.logger.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		l.logger = l.logger.Level(zerolog.WarnLevel)
	case LogLevelError:
		l.logger = l.logger.Level(zerolog.ErrorLevel)
	}
}

func (l *ZerologLogger) Debug(msg string, fields ...any) {
	write(l.logger.Debug(), msg, fields)
}

func (l *ZerologLogger) Info(msg string, fields ...any) {
	write(l.logger.Info(), msg, fields)
}

func (l *ZerologLogger) Warn(msg string, fields ...any) {
	write(l.logger.Warn(), msg, fields)
}

func (l *ZerologLogger) Error(msg string, fields ...any) {
	write(l.logger.Error(), msg, fields)
}

func write(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if err, ok := kv[i+1].(error); ok {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
