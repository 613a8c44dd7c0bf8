// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog logger used by the chainqa binaries.
//
// Records go to the console (stderr unless Config.Output is set) as text
// or JSON. With LogDir set they are also appended, as JSON, to a daily
// file named {service}_{YYYY-MM-DD}.log:
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, LogDir: "~/.chainqa/logs"})
//	defer logger.Close()
//	resolver.New(..., logger.Slog())
//
// Nothing is redacted, so endpoint credentials must never be logged.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is a log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levels = [...]struct {
	name string
	slog slog.Level
}{
	LevelDebug: {"DEBUG", slog.LevelDebug},
	LevelInfo:  {"INFO", slog.LevelInfo},
	LevelWarn:  {"WARN", slog.LevelWarn},
	LevelError: {"ERROR", slog.LevelError},
}

func (l Level) known() bool { return l >= LevelDebug && l <= LevelError }

func (l Level) String() string {
	if !l.known() {
		return "UNKNOWN"
	}
	return levels[l].name
}

// slogLevel maps l onto slog, treating unknown levels as Info.
func (l Level) slogLevel() slog.Level {
	if !l.known() {
		return slog.LevelInfo
	}
	return levels[l].slog
}

// ParseLevel reads a level name in any case. "warning" is accepted for
// Warn and the empty string means Info.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "WARNING":
		return LevelWarn, nil
	}
	for l := LevelDebug; l <= LevelError; l++ {
		if levels[l].name == name {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// MarshalText writes the lower-case name, so config files round-trip.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err == nil {
		*l = parsed
	}
	return err
}

// Config configures New. The zero value writes Info and above to stderr
// as text.
type Config struct {
	Level   Level  `json:"level" yaml:"level"`
	Service string `json:"service" yaml:"service"`

	// LogDir adds a JSON file sink in this directory; ~ is expanded.
	LogDir string `json:"log_dir" yaml:"log_dir"`

	JSON  bool `json:"json" yaml:"json"`
	Quiet bool `json:"quiet" yaml:"quiet"`

	// Output replaces stderr for the console sink.
	Output io.Writer `json:"-" yaml:"-"`
}

// Logger is a *slog.Logger that may own a log file. Children made with
// With share the file; only the Logger returned by New should be closed.
type Logger struct {
	*slog.Logger
	file *logFile
}

// New builds the logger. A log file that cannot be opened is reported on
// the console and skipped rather than failing startup.
func New(cfg Config) *Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}
	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}

	var sinks tee
	if !cfg.Quiet {
		if cfg.JSON {
			sinks = append(sinks, slog.NewJSONHandler(console, opts))
		} else {
			sinks = append(sinks, slog.NewTextHandler(console, opts))
		}
	}

	l := &Logger{}
	if cfg.LogDir != "" {
		f, err := openLogFile(cfg.LogDir, cfg.Service, time.Now())
		switch {
		case err == nil:
			l.file = f
			sinks = append(sinks, slog.NewJSONHandler(f, opts))
		case !cfg.Quiet:
			fmt.Fprintf(console, "logging: file sink disabled: %v\n", err)
		}
	}

	var h slog.Handler = sinks
	switch len(sinks) {
	case 0:
		h = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		h = sinks[0]
	}
	if cfg.Service != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	l.Logger = slog.New(h)
	return l
}

// Slog returns the logger for components that take a *slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.Logger }

// Close flushes and closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// logFile is an append-only file whose Close is idempotent.
type logFile struct {
	mu sync.Mutex
	f  *os.File
}

func openLogFile(dir, service string, day time.Time) (*logFile, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, dir[1:])
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if service == "" {
		service = "chainqa"
	}
	name := filepath.Join(dir, service+"_"+day.Format(time.DateOnly)+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &logFile{f: f}, nil
}

func (lf *logFile) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return 0, os.ErrClosed
	}
	return lf.f.Write(p)
}

func (lf *logFile) Close() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.f == nil {
		return nil
	}
	f := lf.f
	lf.f = nil
	return errors.Join(f.Sync(), f.Close())
}

// tee sends each record to every sink that accepts its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, lv slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, lv) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t tee) each(fn func(slog.Handler) slog.Handler) tee {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
