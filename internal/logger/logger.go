// Package logger provides slog helpers for the app.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      slog.Level
	Production bool
	// File, when set, receives a copy of every record and is rotated by size.
	File string
}

// New returns a JSON logger in production and a console logger otherwise.
func New(opts Options) *slog.Logger {
	var w io.Writer = os.Stderr
	if opts.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}

	if opts.Production {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: true,
			Level:     opts.Level,
		}))
	}

	return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
		Level:           charmlog.Level(opts.Level),
	}))
}

// ParseLevel understands slog level names and falls back to info.
func ParseLevel(raw string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "nil")
	}
	return slog.String("err", err.Error())
}
