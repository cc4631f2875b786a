package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SourceFile identifies an import input by name and content.
type SourceFile struct {
	Name        string `json:"name"`
	ByteSize    int64  `json:"byte_size"`
	ContentHash string `json:"content_hash"`
	Path        string `json:"-"`
}

// Fingerprint hashes the file at path. A renamed copy of the same bytes
// keeps its hash; any edit produces a new one.
func Fingerprint(path string) (SourceFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return SourceFile{}, fmt.Errorf("failed to hash source file: %w", err)
	}

	return SourceFile{
		Name:        filepath.Base(path),
		ByteSize:    n,
		ContentHash: hex.EncodeToString(h.Sum(nil)),
		Path:        path,
	}, nil
}

// LockKey is the key importers lock on.
func (s SourceFile) LockKey() string {
	return s.Name + ":" + s.ContentHash
}
