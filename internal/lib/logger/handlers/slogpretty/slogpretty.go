// Package slogpretty is a colored slog handler for local development.
// Records print as "[time] LEVEL: message [request_id]" followed by the
// remaining attributes as indented JSON.
package slogpretty

import (
	"context"
	"encoding/json"
	"io"
	stdLog "log"
	"log/slog"

	"github.com/fatih/color"
)

// requestIDKey is lifted out of the attribute dump onto the header line.
const requestIDKey = "request_id"

type PrettyHandlerOptions struct {
	SlogOpts *slog.HandlerOptions
}

type PrettyHandler struct {
	slog.Handler
	opts   PrettyHandlerOptions
	l      *stdLog.Logger
	attrs  []slog.Attr
	groups []string
}

func (opts PrettyHandlerOptions) NewPrettyHandler(out io.Writer) *PrettyHandler {
	return &PrettyHandler{
		Handler: slog.NewJSONHandler(out, opts.SlogOpts),
		opts:    opts,
		l:       stdLog.New(out, "", 0),
	}
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch {
	case r.Level >= slog.LevelError:
		level = color.RedString(level)
	case r.Level >= slog.LevelWarn:
		level = color.YellowString(level)
	case r.Level >= slog.LevelInfo:
		level = color.BlueString(level)
	default:
		level = color.MagentaString(level)
	}

	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		put(fields, nil, a)
	}

	var requestID string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == requestIDKey && len(h.groups) == 0 {
			requestID = a.Value.String()
			return true
		}
		put(fields, h.groups, a)
		return true
	})

	line := []any{
		r.Time.Format("[15:04:05.000]"),
		level,
		color.CyanString(r.Message),
	}
	if requestID != "" {
		line = append(line, color.GreenString("[%s]", requestID))
	}

	if len(fields) > 0 {
		b, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return err
		}
		line = append(line, color.WhiteString(string(b)))
	}

	h.l.Println(line...)

	return nil
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, nest(h.groups, a))
	}

	return &PrettyHandler{
		Handler: h.Handler.WithAttrs(attrs),
		opts:    h.opts,
		l:       h.l,
		attrs:   merged,
		groups:  h.groups,
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)

	return &PrettyHandler{
		Handler: h.Handler.WithGroup(name),
		opts:    h.opts,
		l:       h.l,
		attrs:   h.attrs,
		groups:  groups,
	}
}

// nest wraps a in the open groups, innermost last.
func nest(groups []string, a slog.Attr) slog.Attr {
	for i := len(groups) - 1; i >= 0; i-- {
		a = slog.Group(groups[i], a)
	}
	return a
}

func put(fields map[string]any, groups []string, a slog.Attr) {
	a = nest(groups, a)
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() != slog.KindGroup {
		fields[a.Key] = a.Value.Any()
		return
	}

	group, ok := fields[a.Key].(map[string]any)
	if !ok {
		group = make(map[string]any)
	}
	for _, child := range a.Value.Group() {
		put(group, nil, child)
	}
	if a.Key == "" {
		for k, v := range group {
			fields[k] = v
		}
		return
	}
	fields[a.Key] = group
}
