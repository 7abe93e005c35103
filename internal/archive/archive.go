package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Ext is the suffix of compressed transcript snapshots.
const Ext = ".jsonl.zst"

const stampLayout = "2006-01-02T15-04-05Z"

// Snapshot compresses srcPath into snapshotDir/{timestamp}-{id8}.jsonl.zst.
// Returns the snapshot path.
func Snapshot(srcPath, snapshotDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	destPath := SnapshotPath(snapshotDir, now, uuid.NewString()[:8])
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer dest.Close()

	encoder, err := zstd.NewWriter(dest)
	if err != nil {
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}

	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("compress: %w", err)
	}

	if err := encoder.Close(); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("finalize compression: %w", err)
	}

	return destPath, nil
}

// SnapshotPath returns the snapshot file path for a capture time and short id.
func SnapshotPath(snapshotDir string, at time.Time, id string) string {
	return filepath.Join(snapshotDir, at.UTC().Format(stampLayout)+"-"+id+Ext)
}

// List returns snapshot paths in snapshotDir, oldest first.
// A missing directory yields an empty list.
func List(snapshotDir string) ([]string, error) {
	dirEntries, err := os.ReadDir(snapshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	var paths []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), Ext) {
			continue
		}
		paths = append(paths, filepath.Join(snapshotDir, de.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Open opens path for reading, decompressing on the fly when it ends in .zst.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	decoder, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdReadCloser{dec: decoder, f: f}, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}
