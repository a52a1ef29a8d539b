package cmd

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"pmutool/internal/common"
)

var gLogFile *os.File

func logFileName() string { return common.AppName + ".log" }

type logOptions struct {
	debug  bool
	syslog bool
	stdout bool
}

func (o logOptions) handlerOptions() *slog.HandlerOptions {
	if o.debug {
		return &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}
	}
	return &slog.HandlerOptions{Level: slog.LevelInfo}
}

// newLogHandler returns the handler selected by opts. Logs append to
// logFileName() in the working directory unless syslog or stdout is chosen;
// the opened file is returned so it can be closed on shutdown.
func newLogHandler(opts logOptions) (slog.Handler, *os.File, error) {
	handlerOpts := opts.handlerOptions()
	switch {
	case opts.syslog && opts.stdout:
		return nil, nil, fmt.Errorf("--%s and --%s are mutually exclusive", flagSyslogName, flagLogStdOutName)
	case opts.syslog:
		writer, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, common.AppName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to syslog: %w", err)
		}
		return newSyslogHandler(writer, handlerOpts), nil, nil
	case opts.stdout:
		return slog.NewJSONHandler(os.Stdout, handlerOpts), nil, nil
	}
	f, err := os.OpenFile(logFileName(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) // #nosec G302 G304
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.NewTextHandler(f, handlerOpts), f, nil
}

func closeLogFile() error {
	if gLogFile == nil {
		return nil
	}
	err := gLogFile.Close()
	gLogFile = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// syslogWriter is the part of *syslog.Writer the handler uses.
type syslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
}

// syslogHandler formats records as logfmt lines and sends each at the
// syslog severity matching its level.
type syslogHandler struct {
	w         syslogWriter
	level     slog.Leveler
	addSource bool
	attrs     []slog.Attr // from WithAttrs, keys already qualified
	prefix    string      // group prefix for later attributes
}

var _ slog.Handler = (*syslogHandler)(nil)

func newSyslogHandler(w syslogWriter, opts *slog.HandlerOptions) *syslogHandler {
	level := slog.Leveler(slog.LevelInfo)
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &syslogHandler{w: w, level: level, addSource: opts != nil && opts.AddSource}
}

func (h *syslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *syslogHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "level=%s", r.Level)
	if h.addSource && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		// package directory and file are enough to find the call site
		fmt.Fprintf(&sb, " source=%s:%d", filepath.Join(filepath.Base(filepath.Dir(f.File)), filepath.Base(f.File)), f.Line)
	}
	fmt.Fprintf(&sb, " msg=%q", r.Message)
	for _, a := range h.attrs {
		writeAttr(&sb, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.prefix, a)
		return true
	})
	msg := sb.String()
	switch {
	case r.Level >= slog.LevelError:
		return h.w.Err(msg)
	case r.Level >= slog.LevelWarn:
		return h.w.Warning(msg)
	case r.Level >= slog.LevelInfo:
		return h.w.Info(msg)
	default:
		return h.w.Debug(msg)
	}
}

func writeAttr(w io.Writer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(w, prefix, ga)
		}
		return
	}
	fmt.Fprintf(w, " %s%s=%q", prefix, a.Key, a.Value.String())
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *syslogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}
