package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Handler is a compact single-line slog handler with colored levels and keys.
type Handler struct {
	mu    *sync.Mutex
	out   io.Writer
	level slog.Leveler
	color bool

	prefix string // pre-rendered attrs from WithAttrs
	group  string
}

func NewHandler(out io.Writer, level slog.Leveler, colored bool) *Handler {
	return &Handler{mu: &sync.Mutex{}, out: out, level: level, color: colored}
}

// New builds a logger from config values. Unknown levels fall back to info.
func New(out io.Writer, level string, colored bool) *slog.Logger {
	return slog.New(NewHandler(out, ParseLevel(level), colored))
}

func ParseLevel(raw string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	b.WriteString(h.paint(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	for _, a := range attrs {
		h.writeAttr(&b, h.group, a)
	}
	clone := *h
	clone.prefix = h.prefix + b.String()
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

func (h *Handler) writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := group
		if a.Key != "" {
			inner = joinKey(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, inner, ga)
		}
		return
	}
	key := joinKey(group, a.Key)
	if h.color {
		key = color.GreenString(key)
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(fmt.Sprint(a.Value.Any()))
}

func (h *Handler) paint(level slog.Level) string {
	text := level.String() + ":"
	if !h.color {
		return text
	}
	switch {
	case level >= slog.LevelError:
		return color.RedString(text)
	case level >= slog.LevelWarn:
		return color.YellowString(text)
	case level >= slog.LevelInfo:
		return color.HiBlueString(text)
	default:
		return color.MagentaString(text)
	}
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}
