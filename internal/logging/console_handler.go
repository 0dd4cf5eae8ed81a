package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// consoleSink serializes writes from every handler derived from one logger,
// so records from parallel items are never interleaved.
type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *consoleSink) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

// prettyHandler prints a header line per record:
//
//	2006-01-02 15:04:05 INFO [component] disc.iso (convert) · title 3 – message
//
// followed by one indented "key: value" line per remaining attribute.
type prettyHandler struct {
	sink      *consoleSink
	level     slog.Leveler
	addSource bool
	prefix    string  // dotted group path applied to new attributes
	bound     []field // attributes from WithAttrs, already flattened
}

type field struct {
	key   string
	value slog.Value
}

// subject collects the fields rendered in the header instead of as details.
type subject struct {
	component, item, stage, title string
}

func newPrettyHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &prettyHandler{sink: &consoleSink{w: w}, level: level, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level < h.level.Level() {
		return nil
	}
	fields := append([]field(nil), h.bound...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendFlat(fields, h.prefix, a)
		return true
	})
	subj, details := splitSubject(lastWins(fields))
	hideSubject := r.Level >= slog.LevelInfo

	var buf bytes.Buffer
	h.writeHeader(&buf, r, subj)
	for _, f := range details {
		if hideSubject && isSubjectKey(f.key) {
			continue
		}
		fmt.Fprintf(&buf, "    %s: %s\n", f.key, formatValue(f.value))
	}
	return h.sink.write(buf.Bytes())
}

func (h *prettyHandler) writeHeader(buf *bytes.Buffer, r slog.Record, subj subject) {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(formatTimestamp(ts))
	buf.WriteString(" " + levelLabel(r.Level))
	if subj.component != "" {
		buf.WriteString(" [" + subj.component + "]")
	}
	if s := subj.String(); s != "" {
		buf.WriteString(" " + s)
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(" – " + msg)
	if h.addSource {
		if src := r.Source(); src != nil && src.File != "" {
			fmt.Fprintf(buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')
}

// String renders e.g. "disc.iso (convert) · title 3".
func (s subject) String() string {
	var head string
	item := strings.TrimSpace(s.item)
	if item != "" {
		item = filepath.Base(item)
	}
	stage := strings.TrimSpace(s.stage)
	switch {
	case item != "" && stage != "":
		head = item + " (" + stage + ")"
	case item != "":
		head = item
	default:
		head = stage
	}
	title := strings.TrimSpace(s.title)
	if title == "" {
		return head
	}
	if head == "" {
		return "title " + title
	}
	return head + " · title " + title
}

// splitSubject pulls the header fields out of fields. The component is
// dropped from the details; item, stage and title stay so debug output can
// still show them.
func splitSubject(fields []field) (subject, []field) {
	var subj subject
	details := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			subj.component = attrString(f.value)
			continue
		case FieldItem:
			subj.item = attrString(f.value)
		case FieldStage:
			subj.stage = attrString(f.value)
		case FieldTitle:
			subj.title = attrString(f.value)
		}
		details = append(details, f)
	}
	return subj, details
}

func isSubjectKey(key string) bool {
	switch key {
	case FieldItem, FieldStage, FieldTitle:
		return true
	}
	return false
}

// lastWins keeps the first position of each key with its latest value.
func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, seen := index[f.key]; seen {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func appendFlat(dst []field, prefix string, a slog.Attr) []field {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() != slog.KindGroup {
		return append(dst, field{key: key, value: v})
	}
	if a.Key == "" {
		key = prefix
	}
	for _, member := range v.Group() {
		dst = appendFlat(dst, key, member)
	}
	return dst
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = append([]field(nil), h.bound...)
	for _, a := range attrs {
		next.bound = appendFlat(next.bound, h.prefix, a)
	}
	return &next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
