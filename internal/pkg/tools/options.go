package tools

import (
	"strconv"
	"strings"
)

// Options holds the submitted tool parameters verbatim. Values arrive as
// form-field strings; the accessors parse them tolerantly exactly once,
// falling back to the given default when a value is absent or malformed.
type Options map[string]string

// String returns the raw option value or def when absent/empty.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Int parses an integer option. Numeric strings with a fractional part
// are truncated; anything unparsable yields the default.
func (o Options) Int(key string, def int) int {
	raw, ok := o[key]
	if !ok {
		return def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return def
}

// Float parses a floating point option, defaulting when unparsable.
func (o Options) Float(key string, def float64) float64 {
	raw, ok := o[key]
	if !ok {
		return def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return def
}

// Bool parses a boolean option ("true"/"1"/"yes" and friends).
func (o Options) Bool(key string, def bool) bool {
	raw, ok := o[key]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}
