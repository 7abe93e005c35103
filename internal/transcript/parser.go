package transcript

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/open-horizon-labs/superego/internal/archive"
	"github.com/rs/zerolog/log"
)

// ReadFile reads and parses a transcript file. Compressed snapshots
// (*.zst) are decompressed transparently. Only I/O failures are returned;
// malformed lines are logged and skipped.
func ReadFile(path string) ([]Entry, error) {
	rc, err := archive.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer rc.Close()
	return parse(rc, path)
}

// Parse reads a JSONL transcript from a reader.
func Parse(r io.Reader) ([]Entry, error) {
	return parse(r, "")
}

func parse(r io.Reader, source string) ([]Entry, error) {
	var entries []Entry
	br := bufio.NewReaderSize(r, 1024*1024)

	lineNum := 0
	for {
		raw, readErr := br.ReadBytes('\n')
		if len(raw) > 0 {
			lineNum++
			if data := bytes.TrimSpace(raw); len(data) > 0 {
				entry, err := Decode(data)
				if err != nil {
					log.Warn().Err(err).Str("path", source).Int("line", lineNum).
						Msg("skipping malformed transcript line")
				} else {
					entries = append(entries, entry)
				}
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read transcript: %w", readErr)
		}
	}

	return entries, nil
}
