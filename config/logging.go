package config

import (
	"io"
	"log/slog"
	"strings"

	"github.com/MatusOllah/slogcolor"
)

// NewLogger builds the process logger: colored text for development, JSON for production.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}
	opts := *slogcolor.DefaultOptions
	opts.Level = lvl
	return slog.New(slogcolor.NewHandler(w, &opts))
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
