// Package archive writes and reads snapshot history as zstd-compressed JSON lines.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/jordanhubbard/cogload/pkg/models"
)

// ContentType is served for export downloads
const ContentType = "application/zstd"

// Extension is appended to export file names
const Extension = ".jsonl.zst"

// WriteSnapshots encodes one snapshot per line into a zstd stream on w
func WriteSnapshots(w io.Writer, snapshots []*models.CognitiveSnapshot) error {
	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}

	enc := json.NewEncoder(encoder)
	for _, s := range snapshots {
		if err := enc.Encode(s); err != nil {
			encoder.Close()
			return fmt.Errorf("encode snapshot %s: %w", s.ID, err)
		}
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}
	return nil
}

// ReadSnapshots decodes a stream produced by WriteSnapshots
func ReadSnapshots(r io.Reader) ([]*models.CognitiveSnapshot, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()

	var out []*models.CognitiveSnapshot
	scanner := bufio.NewScanner(decoder)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var s models.CognitiveSnapshot
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		out = append(out, &s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return out, nil
}

// ExportFile writes snapshots to path, creating parent directories
func ExportFile(path string, snapshots []*models.CognitiveSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := WriteSnapshots(f, snapshots); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// FileName is the deterministic export name for a user
func FileName(userID string, days int) string {
	return fmt.Sprintf("cognitive-%s-%dd%s", userID, days, Extension)
}
