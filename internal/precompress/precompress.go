// Package precompress writes compressed copies of built artifacts so a
// static file server can hand out .br and .gz variants directly.
package precompress

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/pv/assetcache/internal/minify"
)

// Brotli encodes artifacts to <name>.br.
type Brotli struct {
	Level int
}

func (Brotli) Suffix() string { return ".br" }

func (b Brotli) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, b.Level)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close brotli writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Gzip encodes artifacts to <name>.gz.
type Gzip struct {
	Level int
}

func (Gzip) Suffix() string { return ".gz" }

func (g Gzip) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse maps encoding names from configuration ("br", "brotli", "gz",
// "gzip") to siblings, best compression level.
func Parse(names []string) ([]minify.Sibling, error) {
	out := make([]minify.Sibling, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		var s minify.Sibling
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br", "brotli":
			s = Brotli{Level: brotli.BestCompression}
		case "gz", "gzip":
			s = Gzip{Level: gzip.BestCompression}
		default:
			return nil, fmt.Errorf("unknown precompression %q", name)
		}
		if seen[s.Suffix()] {
			continue
		}
		seen[s.Suffix()] = true
		out = append(out, s)
	}
	return out, nil
}

// Encoding returns the Content-Encoding value for a sibling suffix.
func Encoding(suffix string) string {
	switch suffix {
	case ".br":
		return "br"
	case ".gz":
		return "gzip"
	}
	return ""
}
