package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// IngestStatus is the ledger state of a (path, fingerprint) pair.
type IngestStatus string

const (
	StatusPending  IngestStatus = "pending"
	StatusIngested IngestStatus = "ingested"
	StatusFailed   IngestStatus = "failed"
)

// FileRecord identifies one version of a source log file. A file whose
// fingerprint changes is a new, independent ingestion unit, never an update.
type FileRecord struct {
	Path        string
	Fingerprint string
	Size        int64
	ModTime     time.Time
	Status      IngestStatus
	LastError   string
}

// Fingerprint computes the sha256 hex digest of a file's bytes by streaming.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FingerprintBytes computes the sha256 hex digest of in-memory content.
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewFileRecord stats path and builds a pending FileRecord with its fingerprint.
func NewFileRecord(path string) (FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileRecord{}, fmt.Errorf("stat %s: %w", path, err)
	}
	fp, err := Fingerprint(path)
	if err != nil {
		return FileRecord{}, err
	}
	return FileRecord{
		Path:        path,
		Fingerprint: fp,
		Size:        info.Size(),
		ModTime:     info.ModTime().UTC(),
		Status:      StatusPending,
	}, nil
}
