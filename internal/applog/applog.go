// Package applog builds the application's slog logger: JSON or text on a
// console writer, plus an optional rotating JSON file.
package applog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options controls logger construction.
type Options struct {
	Level  slog.Level
	Format string // json (default) or text
	// File, if set, receives a copy of every record, rotated by size.
	File string
	// Out is the console writer; os.Stdout when nil.
	Out io.Writer
}

// New returns a logger for opts and a closer for the file sink (a no-op when
// no file is configured).
func New(opts Options) (*slog.Logger, io.Closer, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatJSON:
		console = slog.NewJSONHandler(out, hopts)
	case FormatText:
		console = slog.NewTextHandler(out, hopts)
	default:
		return nil, nil, fmt.Errorf("applog: unknown format %q", opts.Format)
	}

	if strings.TrimSpace(opts.File) == "" {
		return slog.New(console), nopCloser{}, nil
	}

	w := &lumberjack.Logger{Filename: opts.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
	file := slog.NewJSONHandler(w, hopts)
	return slog.New(Fanout(console, file)), w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Fanout sends every record to all handlers.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return &fanout{hs: handlers}
}

type fanout struct{ hs []slog.Handler }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	res := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		res[i] = h.WithAttrs(attrs)
	}
	return &fanout{hs: res}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	res := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		res[i] = h.WithGroup(name)
	}
	return &fanout{hs: res}
}
