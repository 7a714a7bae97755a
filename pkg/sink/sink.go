// Package sink writes the aggregated document to disk atomically.
//
// The artifact is written to a temporary file in the target directory and
// renamed over the destination, so a reader never observes a truncated
// document: either the complete artifact exists or the previous state is
// untouched, including on marshal or write failure.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Writer serializes documents to JSON files.
type Writer struct {
	logger zerolog.Logger
}

// NewWriter creates a document writer.
func NewWriter() *Writer {
	return &Writer{
		logger: log.With().Str("component", "sink").Logger(),
	}
}

// Write renders doc as indented JSON and atomically persists it at path.
// Serialization is deterministic: the same document always yields the same
// bytes.
func (w *Writer) Write(path string, doc any) (err error) {
	payload, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	// Temp file must live on the same filesystem as the target for the
	// rename to be atomic.
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(payload); err != nil {
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}

	w.logger.Info().
		Str("path", path).
		Int("bytes", len(payload)).
		Msg("Wrote output document")

	return nil
}
