package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

// shortIDLen is how much of a correlation ID the console prefix shows.
const shortIDLen = 8

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02 15:04:05.000 INFO [1a2b3c4d] server: http request status=200
//
// The component and correlation ID are lifted out of the attributes into
// the prefix.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []slog.Attr
	groups    []string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	fields := make([]field, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = appendField(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})

	var component, requestID string
	kept := fields[:0]
	for _, f := range fields {
		switch {
		case f.key == FieldComponent && component == "":
			component = plainString(f.value)
		case f.key == FieldCorrelationID && requestID == "":
			requestID = plainString(f.value)
		case f.key == FieldComponent || f.key == FieldCorrelationID:
		default:
			kept = append(kept, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.Grow(128 + len(kept)*24)
	b.WriteString(ts.Local().Format(consoleTimeLayout))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	if requestID != "" {
		b.WriteByte('[')
		b.WriteString(shortID(requestID))
		b.WriteString("] ")
	}
	if component != "" {
		b.WriteString(component)
		b.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range kept {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(quotedString(f.value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

type field struct {
	key   string
	value slog.Value
}

// appendField flattens groups into dotted keys.
func appendField(dst []field, groups []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(append([]string(nil), groups...), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			dst = appendField(dst, inner, a)
		}
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(append(append([]string(nil), groups...), key), ".")
	}
	if key == "" {
		return dst
	}
	return append(dst, field{key: key, value: attr.Value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// plainString renders v without quoting, for use in the line prefix.
func plainString(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return quotedString(v)
}

func quotedString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		d := v.Duration()
		if d >= time.Millisecond {
			d = d.Round(time.Millisecond)
		}
		return d.String()
	case slog.KindTime:
		return v.Time().Local().Format(consoleTimeLayout)
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return quote(x.Error())
		case []string:
			return quote(strings.Join(x, ","))
		default:
			return quote(fmt.Sprint(x))
		}
	default:
		return quote(v.String())
	}
}

func quote(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
