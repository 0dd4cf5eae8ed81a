package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(consoleTimeLayout)
}

// attrString renders v without quoting; used for the header subject
// (component, item, stage, title).
func attrString(v slog.Value) string {
	return render(v.Resolve())
}

// formatValue renders v for a detail line, quoting strings that would
// otherwise be ambiguous when read back.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	s := render(v)
	switch v.Kind() {
	case slog.KindString, slog.KindAny:
		if s == "" || strings.ContainsFunc(s, unsafeRune) {
			return strconv.Quote(s)
		}
	}
	return s
}

func render(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func unsafeRune(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
