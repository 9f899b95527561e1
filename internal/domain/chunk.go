package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Chunk is a bounded unit of embeddable log text. Its id is a deterministic
// function of the file fingerprint and the chunk sequence index, so
// re-ingesting identical content regenerates identical ids and upserts stay
// idempotent.
type Chunk struct {
	ID          string
	Path        string
	Fingerprint string
	Seq         int
	Records     []LogRecord
	Text        string
	Chars       int
	TimeFrom    time.Time
	TimeTo      time.Time
	Severities  []string
}

// ChunkID derives the stable chunk identifier for a file version and
// sequence index.
func ChunkID(fingerprint string, seq int) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(seq)))
	return hex.EncodeToString(h.Sum(nil))
}
