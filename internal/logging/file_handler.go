package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
)

// promotedKeys are written at the top level of every JSON line, right after
// the message and in this order.
var promotedKeys = []string{FieldComponent, FieldRunID, FieldWorker, FieldSource}

const fileTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// fileHandler writes JSON lines for the daily log file. The promoted keys
// are lifted out of logger.With attributes, call attributes and the context
// of *Context calls, so each appears once per line wherever it was set.
// Later values win over earlier ones; the context only fills gaps.
type fileHandler struct {
	base     slog.Handler
	promoted []slog.Attr
	ops      []fileOp
	grouped  bool
}

// fileOp replays a WithAttrs or WithGroup call on the base handler.
type fileOp struct {
	group string
	attrs []slog.Attr
}

func newFileHandler(w io.Writer, level slog.Leveler, addSource bool) *fileHandler {
	return &fileHandler{base: slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   addSource,
		ReplaceAttr: replaceFileAttr,
	})}
}

func replaceFileAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
		if a.Value.Kind() == slog.KindTime {
			a.Value = slog.StringValue(a.Value.Time().UTC().Format(fileTimeLayout))
		}
	case slog.LevelKey:
		a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
	case slog.SourceKey:
		// The caller is renamed so it cannot collide with FieldSource.
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			a.Key = "caller"
			a.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return a
}

func (h *fileHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *fileHandler) Handle(ctx context.Context, r slog.Record) error {
	promoted := slices.Clone(h.promoted)
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		if !h.grouped && isPromoted(a.Key) {
			promoted = setAttr(promoted, a)
		} else {
			out.AddAttrs(a)
		}
		return true
	})
	for _, a := range ContextFields(ctx) {
		if !hasAttrKey(promoted, a.Key) {
			promoted = append(promoted, a)
		}
	}
	slices.SortStableFunc(promoted, func(a, b slog.Attr) int {
		return slices.Index(promotedKeys, a.Key) - slices.Index(promotedKeys, b.Key)
	})

	handler := h.base.WithAttrs(promoted)
	for _, op := range h.ops {
		if op.group != "" {
			handler = handler.WithGroup(op.group)
			continue
		}
		handler = handler.WithAttrs(op.attrs)
	}
	return handler.Handle(ctx, out)
}

func (h *fileHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	var rest []slog.Attr
	for _, a := range attrs {
		if !h.grouped && isPromoted(a.Key) {
			clone.promoted = setAttr(clone.promoted, a)
			continue
		}
		rest = append(rest, a)
	}
	if len(rest) > 0 {
		clone.ops = append(clone.ops, fileOp{attrs: rest})
	}
	return clone
}

func (h *fileHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.ops = append(clone.ops, fileOp{group: name})
	clone.grouped = true
	return clone
}

func (h *fileHandler) clone() *fileHandler {
	return &fileHandler{
		base:     h.base,
		promoted: slices.Clone(h.promoted),
		ops:      slices.Clone(h.ops),
		grouped:  h.grouped,
	}
}

func isPromoted(key string) bool {
	return slices.Contains(promotedKeys, key)
}

// setAttr replaces the attribute with a's key or appends a.
func setAttr(attrs []slog.Attr, a slog.Attr) []slog.Attr {
	for i := range attrs {
		if attrs[i].Key == a.Key {
			attrs[i] = a
			return attrs
		}
	}
	return append(attrs, a)
}
