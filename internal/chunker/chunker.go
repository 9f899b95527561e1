// Package chunker groups consecutive log records into bounded-size chunks
// with stable, reproducible identifiers.
package chunker

import (
	"sort"
	"strings"
	"time"

	"github.com/opsgrep/lograg/internal/domain"
)

// Config bounds chunk size and sets the record overlap between neighbours.
type Config struct {
	// MaxChars is the text budget per chunk. A single record larger than
	// the budget becomes its own oversized chunk, never truncated.
	MaxChars int
	// OverlapRecords repeats the last N records of a chunk at the start of
	// the next one. Zero disables overlap.
	OverlapRecords int
}

// DefaultConfig matches the deployment defaults.
func DefaultConfig() Config {
	return Config{MaxChars: 2000, OverlapRecords: 0}
}

// Split partitions records into chunks. Records are consumed in file order;
// without overlap the chunks partition the record set with no gaps and no
// duplication. Chunk ids depend only on the file fingerprint and the chunk
// sequence index.
func Split(file domain.FileRecord, records []domain.LogRecord, cfg Config) []domain.Chunk {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultConfig().MaxChars
	}
	if cfg.OverlapRecords < 0 {
		cfg.OverlapRecords = 0
	}
	if len(records) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	var current []domain.LogRecord
	currentChars := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(file, len(chunks), current))

		if cfg.OverlapRecords > 0 {
			carry := cfg.OverlapRecords
			// Overlap must never prevent a chunk from accepting new
			// records, so it is capped below the full chunk.
			if carry >= len(current) {
				carry = len(current) - 1
			}
			if carry > 0 {
				next := make([]domain.LogRecord, carry)
				copy(next, current[len(current)-carry:])
				current = next
				currentChars = textLen(current)
				return
			}
		}
		current = nil
		currentChars = 0
	}

	for _, rec := range records {
		line := len(rec.Text())
		if len(current) > 0 && currentChars+line+1 > cfg.MaxChars {
			flush()
			// Re-check: the carried overlap plus the new record may
			// still exceed the budget; drop the overlap rather than
			// emit an over-budget chunk.
			if len(current) > 0 && currentChars+line+1 > cfg.MaxChars {
				current = nil
				currentChars = 0
			}
		}
		current = append(current, rec)
		if currentChars == 0 {
			currentChars = line
		} else {
			currentChars += line + 1
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, buildChunk(file, len(chunks), current))
	}

	return chunks
}

func buildChunk(file domain.FileRecord, seq int, records []domain.LogRecord) domain.Chunk {
	recs := make([]domain.LogRecord, len(records))
	copy(recs, records)

	lines := make([]string, len(recs))
	sevSet := make(map[string]struct{})
	var from, to time.Time
	for i, r := range recs {
		lines[i] = r.Text()
		sevSet[string(r.Severity)] = struct{}{}
		if r.Timestamp.IsZero() {
			continue
		}
		if from.IsZero() || r.Timestamp.Before(from) {
			from = r.Timestamp
		}
		if to.IsZero() || r.Timestamp.After(to) {
			to = r.Timestamp
		}
	}

	severities := make([]string, 0, len(sevSet))
	for s := range sevSet {
		severities = append(severities, s)
	}
	sort.Strings(severities)

	text := strings.Join(lines, "\n")
	return domain.Chunk{
		ID:          domain.ChunkID(file.Fingerprint, seq),
		Path:        file.Path,
		Fingerprint: file.Fingerprint,
		Seq:         seq,
		Records:     recs,
		Text:        text,
		Chars:       len(text),
		TimeFrom:    from,
		TimeTo:      to,
		Severities:  severities,
	}
}

func textLen(records []domain.LogRecord) int {
	n := 0
	for i, r := range records {
		if i > 0 {
			n++
		}
		n += len(r.Text())
	}
	return n
}
