// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the handler and destination of the logger.
type Options struct {
	Level     string // debug, info, warn or error
	Dev       bool   // text handler instead of JSON
	File      string // when set, logs rotate through this file instead of stderr
	MaxSizeMB int

	// LevelVar, when set, holds the handler level so it can change at runtime.
	LevelVar *slog.LevelVar
}

// ParseLevel maps a config level name to a slog level; unknown names are info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a logger for opts and the closer for its output. The closer is
// a no-op for stderr.
func New(opts Options) (*slog.Logger, io.Closer) {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: 5,
			Compress:   true,
		}
		w, closer = lj, lj
	}
	return NewWithWriter(w, opts), closer
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if opts.LevelVar != nil {
		opts.LevelVar.Set(ParseLevel(opts.Level))
		handlerOpts.Level = opts.LevelVar
	}
	if opts.Dev {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
