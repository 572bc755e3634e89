// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// New constructs a slog.Logger writing to w. format is "text" or
// "json"; anything else falls back to text. Unknown levels fall back
// to info.
func New(level, format string, w io.Writer) *slog.Logger {
	return slog.New(newHandler(format, parseLevel(level), w))
}

func newHandler(format string, level slog.Level, w io.Writer) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
	}

	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.SourceKey {
				return a
			}
			// shorten source paths to pkg/file.go
			if src, ok := a.Value.Any().(*slog.Source); ok {
				parts := strings.Split(filepath.ToSlash(src.File), "/")
				if len(parts) > 2 {
					parts = parts[len(parts)-2:]
				}
				src.File = filepath.Join(parts...)
			}
			return a
		},
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
