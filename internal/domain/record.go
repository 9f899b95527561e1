package domain

import (
	"sort"
	"strings"
	"time"
)

// Severity is a normalized log level.
type Severity string

const (
	SeverityDebug Severity = "DEBUG"
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// ParseSeverity normalizes a raw level string. Unknown levels map to INFO.
func ParseSeverity(raw string) Severity {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG", "TRACE":
		return SeverityDebug
	case "WARN", "WARNING":
		return SeverityWarn
	case "ERROR", "ERR", "FATAL", "CRITICAL":
		return SeverityError
	default:
		return SeverityInfo
	}
}

// LogRecord is one normalized log entry. Produced by the loader, consumed by
// the chunker; never persisted on its own.
type LogRecord struct {
	Timestamp time.Time
	Severity  Severity
	Source    string
	Message   string
	Attrs     map[string]string

	// Position is the record's index within its file. It is the only
	// ordering key for records without a parseable timestamp.
	Position int
}

// Text renders the record as a single embeddable line. Attrs are emitted in
// sorted key order so the rendering is stable across runs.
func (r LogRecord) Text() string {
	var b strings.Builder
	if !r.Timestamp.IsZero() {
		b.WriteString(r.Timestamp.UTC().Format(time.RFC3339))
		b.WriteByte(' ')
	}
	b.WriteString(string(r.Severity))
	if r.Source != "" {
		b.WriteByte(' ')
		b.WriteString(r.Source)
	}
	if r.Message != "" {
		b.WriteByte(' ')
		b.WriteString(r.Message)
	}
	if len(r.Attrs) > 0 {
		keys := make([]string, 0, len(r.Attrs))
		for k := range r.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(r.Attrs[k])
		}
	}
	return b.String()
}
