// Package docsource supplies uploaded documents as already-extracted
// plain text. PDF (or any other format) extraction is an external
// collaborator plugged in through the Extractor hook; the core never
// parses binary documents itself.
package docsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Document is one uploaded document's extracted text.
type Document struct {
	// Name is the document's filename.
	Name string
	// Text is the extracted plain text.
	Text string
}

// Source yields the documents to ingest.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// Extractor converts one file into plain text. Used for formats the
// folder source does not read natively.
type Extractor func(path string) (string, error)

// FolderSource reads documents from a directory. Plain-text files
// (.txt, .md) are read directly; other extensions are handed to the
// registered extractor and skipped when none is registered.
type FolderSource struct {
	dir        string
	extractors map[string]Extractor
	logger     *zap.Logger
}

// NewFolderSource creates a folder-backed document source.
func NewFolderSource(dir string, logger *zap.Logger) *FolderSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderSource{
		dir:        dir,
		extractors: make(map[string]Extractor),
		logger:     logger,
	}
}

// RegisterExtractor wires an external text extractor for a file
// extension (e.g. ".pdf").
func (s *FolderSource) RegisterExtractor(ext string, fn Extractor) {
	s.extractors[strings.ToLower(ext)] = fn
}

// Documents returns the extracted text of every readable document in
// the folder, in directory order. A file that fails to read or extract
// is logged and skipped; it does not abort the listing.
func (s *FolderSource) Documents(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading document folder %s: %w", s.dir, err)
	}

	var docs []Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))

		var text string
		switch {
		case ext == ".txt" || ext == ".md":
			raw, err := os.ReadFile(path)
			if err != nil {
				s.logger.Warn("skipping unreadable document",
					zap.String("file", entry.Name()), zap.Error(err),
				)
				continue
			}
			text = string(raw)
		default:
			extract, ok := s.extractors[ext]
			if !ok {
				s.logger.Debug("no extractor for file, skipping",
					zap.String("file", entry.Name()),
				)
				continue
			}
			text, err = extract(path)
			if err != nil {
				s.logger.Warn("document extraction failed, skipping",
					zap.String("file", entry.Name()), zap.Error(err),
				)
				continue
			}
		}

		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{Name: entry.Name(), Text: text})
	}

	return docs, nil
}
