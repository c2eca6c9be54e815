package logger

import (
	"fmt"
	"log/slog"
)

// Attribute keys that carry record values read from a replica store.
const (
	AttrValue    = "value"
	AttrExpected = "expected"
	AttrActual   = "actual"
)

// maskedValue is the placeholder format for masked record values.
const maskedValue = "***MASKED*** (%d bytes)"

var valueKeys = map[string]bool{
	AttrValue:    true,
	AttrExpected: true,
	AttrActual:   true,
}

// valueFilter rewrites record value attributes before they are written.
// Store values can be large or carry user data, so they are either masked
// or truncated to maxLen bytes.
type valueFilter struct {
	mask   bool
	maxLen int
}

func (f valueFilter) apply(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = f.apply(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if !valueKeys[a.Key] || a.Value.Kind() != slog.KindString {
		return a
	}

	s := a.Value.String()
	if f.mask {
		return slog.String(a.Key, fmt.Sprintf(maskedValue, len(s)))
	}
	return slog.String(a.Key, Truncate(s, f.maxLen))
}

// Truncate shortens s to at most max bytes plus a marker naming how many
// bytes were dropped. A non-positive max returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return fmt.Sprintf("%s...(+%d bytes)", s[:max], len(s)-max)
}
