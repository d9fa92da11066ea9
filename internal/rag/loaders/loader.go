// Package loaders turns uploaded files of supported formats into the
// normalized per-page text the splitter consumes. Each loader handles one
// family of formats; ForFilename picks the right one by extension.
package loaders

import (
	"path/filepath"
	"strings"

	"Muninn/internal/rag/interfaces"
	"Muninn/internal/rag/ragerr"
)

// TextExtensions lists every file extension the text ingestion path
// accepts. The upload handler validates against this set before storing
// anything.
var TextExtensions = []string{".pdf", ".docx", ".txt", ".md", ".xlsx", ".html", ".htm"}

// ForFilename returns the loader responsible for the given filename's
// extension, or a validation error for unsupported formats.
func ForFilename(filename string) (interfaces.Loader, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return NewTextLoader(), nil
	case ".pdf":
		return NewPdfLoader(), nil
	case ".docx":
		return NewDocxLoader(), nil
	case ".xlsx":
		return NewXlsxLoader(), nil
	case ".html", ".htm":
		return NewHTMLLoader(), nil
	}
	return nil, ragerr.NewValidation("filename", "unsupported file type %q, allowed: %s",
		filepath.Ext(filename), strings.Join(TextExtensions, ", "))
}

// Supported reports whether filename has an extension some loader accepts.
func Supported(filename string) bool {
	_, err := ForFilename(filename)
	return err == nil
}
