// Package extract pulls plain text out of uploaded document files so the
// ingestion pipeline only ever sees raw text.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// SupportedExtensions lists the file types Text can handle.
var SupportedExtensions = []string{".txt", ".md", ".pdf"}

// Supported reports whether the file extension has an extractor.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Text extracts the plain text content of the file at path based on its
// extension.
func Text(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		return fromPlainFile(path)
	case ".pdf":
		return fromPDF(path)
	default:
		return "", fmt.Errorf("unsupported file format %q", ext)
	}
}

// Bytes extracts text from in-memory file content, using filename only for
// format detection. PDF content is staged through a temp file because the
// PDF reader needs random access to a file.
func Bytes(content []byte, filename string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt", ".md", "":
		return strings.TrimSpace(string(content)), nil
	case ".pdf":
		tmp, err := os.CreateTemp("", "extract-*.pdf")
		if err != nil {
			return "", fmt.Errorf("staging pdf content: %w", err)
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(content); err != nil {
			tmp.Close()
			return "", fmt.Errorf("staging pdf content: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return "", fmt.Errorf("staging pdf content: %w", err)
		}
		return fromPDF(tmp.Name())
	default:
		return "", fmt.Errorf("unsupported file format %q", ext)
	}
}

func fromPlainFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func fromPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
