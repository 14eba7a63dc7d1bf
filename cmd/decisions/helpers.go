package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ashureev/decisions/internal/domain"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var logger *slog.Logger
	if json {
		logger = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(w, opts))
	}
	slog.SetDefault(logger)
	return logger
}

// parseVariants turns "Title=Essay" flag values into draft variants. A value
// without "=" is an essay under the default title for its position.
func parseVariants(values []string) ([]domain.Variant, error) {
	out := make([]domain.Variant, 0, len(values))
	for i, v := range values {
		title, essay, ok := strings.Cut(v, "=")
		if !ok {
			title, essay = domain.DefaultVariantTitle(i), v
		}
		title, essay = strings.TrimSpace(title), strings.TrimSpace(essay)
		if title == "" {
			return nil, fmt.Errorf("variant %d: empty title in %q", i+1, v)
		}
		out = append(out, domain.Variant{Title: title, Essay: essay})
	}
	return out, nil
}
