// Package slogutil adapts log/slog to intermap's single-line log format:
// UTC timestamp, bracketed level, message, then a pipe-separated attribute
// tail (`2024-01-02T03:04:05Z [warn] msg | key=value key=value`).
package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Handler renders slog records as intermap log lines.
//
// Attributes added through With are formatted once, when the derived
// handler is built, and replayed verbatim on every record.
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	min    slog.Leveler
	prefix string // dot-joined open groups, trailing dot included
	tail   []byte // preformatted attrs carried over from WithAttrs
}

// NewHandler creates a handler writing to w. A nil opts or nil opts.Level
// means info and above.
func NewHandler(w io.Writer, opts *slog.HandlerOptions) *Handler {
	h := &Handler{w: w, min: slog.LevelInfo, mu: &sync.Mutex{}}
	if opts != nil && opts.Level != nil {
		h.min = opts.Level
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min.Level()
}

// Handle writes one record as one line. The line is assembled fully
// before the write so concurrent records never interleave.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	line := make([]byte, 0, 128+len(h.tail))
	line = r.Time.UTC().AppendFormat(line, time.RFC3339)
	line = append(line, " ["...)
	line = append(line, levelName(r.Level)...)
	line = append(line, "] "...)
	line = append(line, r.Message...)

	if len(h.tail) > 0 || r.NumAttrs() > 0 {
		line = append(line, " |"...)
		line = append(line, h.tail...)
		r.Attrs(func(a slog.Attr) bool {
			line = appendAttr(line, h.prefix, a)
			return true
		})
	}
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line)
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	tail := make([]byte, len(h.tail), len(h.tail)+16*len(attrs))
	copy(tail, h.tail)
	for _, a := range attrs {
		tail = appendAttr(tail, h.prefix, a)
	}
	derived := *h
	derived.tail = tail
	return &derived
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	derived := *h
	derived.prefix = h.prefix + name + "."
	return &derived
}

func appendAttr(line []byte, prefix string, a slog.Attr) []byte {
	if a.Key == "" {
		return line
	}
	line = append(line, ' ')
	line = append(line, prefix...)
	line = append(line, a.Key...)
	line = append(line, '=')
	return appendValue(line, a.Value.Resolve())
}

func appendValue(line []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return append(line, v.String()...)
	case slog.KindInt64:
		return strconv.AppendInt(line, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(line, v.Uint64(), 10)
	case slog.KindBool:
		return strconv.AppendBool(line, v.Bool())
	case slog.KindDuration:
		return append(line, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(line, time.RFC3339)
	default:
		return fmt.Append(line, v.Any())
	}
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
