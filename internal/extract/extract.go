// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// ErrExtractionFailed is returned in strict mode when a PDF cannot be parsed.
var ErrExtractionFailed = errors.New("extraction failed")

// Options controls extraction behaviour.
type Options struct {
	// StrictPDF makes an unparseable PDF an error instead of falling back
	// to lossy UTF-8 decoding of the raw bytes.
	StrictPDF bool
}

// Extractor dispatches on the filename extension.
type Extractor struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Extractor. A nil logger uses slog.Default().
func New(opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{opts: opts, logger: logger}
}

// Extract returns the text of content. Extensions are matched
// case-insensitively; anything other than .pdf and .docx is decoded as UTF-8
// with invalid byte sequences dropped.
func (e *Extractor) Extract(content []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err := pdfText(content)
		if err == nil {
			return text, nil
		}
		if e.opts.StrictPDF {
			return "", fmt.Errorf("%w: %s: %v", ErrExtractionFailed, filename, err)
		}
		e.logger.Warn("pdf parse failed, decoding raw bytes", "filename", filename, "error", err)
		return decodeUTF8(content), nil
	case ".docx":
		text, err := docxText(content)
		if err != nil {
			return "", fmt.Errorf("reading docx %s: %w", filename, err)
		}
		return text, nil
	default:
		return decodeUTF8(content), nil
	}
}

func decodeUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
