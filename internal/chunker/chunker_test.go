package chunker

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/opsgrep/lograg/internal/domain"
)

func testFile() domain.FileRecord {
	return domain.FileRecord{Path: "logs.json", Fingerprint: "abc123"}
}

func makeRecords(n int) []domain.LogRecord {
	recs := make([]domain.LogRecord, n)
	for i := range recs {
		recs[i] = domain.LogRecord{
			Timestamp: time.Date(2025, 6, 1, 10, 0, i, 0, time.UTC),
			Severity:  domain.SeverityInfo,
			Source:    "app1",
			Message:   fmt.Sprintf("event number %d", i),
			Position:  i,
		}
	}
	return recs
}

func TestSplit_SingleChunkUnderBudget(t *testing.T) {
	chunks := Split(testFile(), makeRecords(3), Config{MaxChars: 2000})
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	c := chunks[0]
	if c.ID != domain.ChunkID("abc123", 0) {
		t.Errorf("id = %s, want hash(fingerprint, 0)", c.ID)
	}
	if len(c.Records) != 3 {
		t.Errorf("records = %d, want 3", len(c.Records))
	}
	if c.Chars != len(c.Text) {
		t.Errorf("chars = %d, text len = %d", c.Chars, len(c.Text))
	}
}

func TestSplit_PartitionsWithoutGaps(t *testing.T) {
	recs := makeRecords(50)
	chunks := Split(testFile(), recs, Config{MaxChars: 200})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var got []int
	for _, c := range chunks {
		for _, r := range c.Records {
			got = append(got, r.Position)
		}
	}
	if len(got) != len(recs) {
		t.Fatalf("record union = %d, want %d", len(got), len(recs))
	}
	for i, pos := range got {
		if pos != i {
			t.Fatalf("record order broken at %d: got position %d", i, pos)
		}
	}
}

func TestSplit_OverlapDuplicatesTailRecords(t *testing.T) {
	recs := makeRecords(50)
	overlap := 2
	chunks := Split(testFile(), recs, Config{MaxChars: 300, OverlapRecords: overlap})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Records
		cur := chunks[i].Records
		for j := 0; j < overlap; j++ {
			want := prev[len(prev)-overlap+j]
			if cur[j].Position != want.Position {
				t.Fatalf("chunk %d record %d: position %d, want %d",
					i, j, cur[j].Position, want.Position)
			}
		}
	}
}

func TestSplit_OversizedRecordBecomesOwnChunk(t *testing.T) {
	recs := []domain.LogRecord{
		{Severity: domain.SeverityInfo, Message: "small", Position: 0},
		{Severity: domain.SeverityError, Message: strings.Repeat("x", 500), Position: 1},
		{Severity: domain.SeverityInfo, Message: "small too", Position: 2},
	}
	chunks := Split(testFile(), recs, Config{MaxChars: 100})
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	big := chunks[1]
	if len(big.Records) != 1 || big.Records[0].Position != 1 {
		t.Fatalf("oversized record not isolated: %+v", big.Records)
	}
	if !strings.Contains(big.Text, strings.Repeat("x", 500)) {
		t.Error("oversized record text truncated")
	}
}

func TestSplit_StableIDsAcrossRuns(t *testing.T) {
	recs := makeRecords(30)
	a := Split(testFile(), recs, Config{MaxChars: 250})
	b := Split(testFile(), recs, Config{MaxChars: 250})

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("chunk %d: ids differ across runs", i)
		}
		if a[i].Text != b[i].Text {
			t.Errorf("chunk %d: text differs across runs", i)
		}
	}
}

func TestSplit_ChangedFingerprintDisjointIDs(t *testing.T) {
	recs := makeRecords(30)
	a := Split(domain.FileRecord{Path: "logs.json", Fingerprint: "fp-a"}, recs, Config{MaxChars: 250})
	b := Split(domain.FileRecord{Path: "logs.json", Fingerprint: "fp-b"}, recs, Config{MaxChars: 250})

	seen := make(map[string]bool)
	for _, c := range a {
		seen[c.ID] = true
	}
	for _, c := range b {
		if seen[c.ID] {
			t.Fatalf("chunk id %s shared across fingerprints", c.ID)
		}
	}
}

func TestSplit_MetadataRanges(t *testing.T) {
	recs := makeRecords(3)
	recs[1].Severity = domain.SeverityError
	chunks := Split(testFile(), recs, Config{MaxChars: 2000})
	c := chunks[0]

	if !c.TimeFrom.Equal(recs[0].Timestamp) || !c.TimeTo.Equal(recs[2].Timestamp) {
		t.Errorf("time range = %v..%v", c.TimeFrom, c.TimeTo)
	}
	if len(c.Severities) != 2 || c.Severities[0] != "ERROR" || c.Severities[1] != "INFO" {
		t.Errorf("severities = %v", c.Severities)
	}
}

func TestSplit_Empty(t *testing.T) {
	if chunks := Split(testFile(), nil, Config{MaxChars: 100}); chunks != nil {
		t.Errorf("expected nil chunks, got %d", len(chunks))
	}
}
