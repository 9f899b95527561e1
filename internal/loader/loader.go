// Package loader reads raw log files and normalizes entries into LogRecords.
// Two layouts are supported: a single JSON array of objects, and NDJSON (one
// object per line). Malformed entries are skipped and counted, never fatal
// for the file.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/opsgrep/lograg/internal/domain"
)

// Result carries the normalized records of one file plus the malformed count.
type Result struct {
	Records   []domain.LogRecord
	Malformed int
}

// Load reads and normalizes the log file at path.
func Load(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse normalizes raw log file content.
func Parse(data []byte) (Result, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return parseArray(trimmed)
	}
	return parseLines(data)
}

func parseArray(data []byte) (Result, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return Result{}, fmt.Errorf("parse log array: %w", err)
	}

	var res Result
	for i, raw := range raws {
		rec, err := parseEntry(raw, i)
		if err != nil {
			res.Malformed++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func parseLines(data []byte) (Result, error) {
	var res Result
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	pos := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := parseEntry(line, pos)
		if err != nil {
			res.Malformed++
			pos++
			continue
		}
		res.Records = append(res.Records, rec)
		pos++
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("scan log lines: %w", err)
	}
	return res, nil
}

// parseEntry normalizes one raw JSON object. Entries that are not JSON
// objects are malformed; missing optional fields default to neutral values.
func parseEntry(raw []byte, pos int) (domain.LogRecord, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.LogRecord{}, fmt.Errorf("entry %d: %w: %w", pos, domain.ErrMalformedRecord, err)
	}
	if fields == nil {
		return domain.LogRecord{}, fmt.Errorf("entry %d: %w: null entry", pos, domain.ErrMalformedRecord)
	}

	rec := domain.LogRecord{
		Severity: domain.SeverityInfo,
		Position: pos,
		Attrs:    make(map[string]string),
	}

	for key, val := range fields {
		switch key {
		case "timestamp", "time", "ts":
			// A missing or unparseable timestamp leaves the zero value:
			// the record then orders by file position, never by a
			// fabricated wall-clock time.
			if s, ok := val.(string); ok {
				rec.Timestamp = parseTimestamp(s)
			}
		case "level", "severity":
			if s, ok := val.(string); ok {
				rec.Severity = domain.ParseSeverity(s)
			}
		case "message", "msg":
			if s, ok := val.(string); ok {
				rec.Message = s
			}
		case "application", "app", "component", "source":
			if s, ok := val.(string); ok && rec.Source == "" {
				rec.Source = s
			}
		default:
			if s, ok := scalarString(val); ok {
				rec.Attrs[key] = s
			}
		}
	}

	if len(rec.Attrs) == 0 {
		rec.Attrs = nil
	}
	return rec, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// scalarString renders a scalar JSON value as a string. Nested objects and
// arrays are not part of the open attrs mapping and are dropped.
func scalarString(val any) (string, bool) {
	switch v := val.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case nil:
		return "", false
	default:
		return "", false
	}
}
