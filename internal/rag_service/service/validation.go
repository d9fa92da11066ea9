package service

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"Muninn/internal/rag/loaders"
	"Muninn/internal/rag/ragerr"
	"Muninn/internal/rag/schema"
)

// ImageExtensions and AudioExtensions list the accepted upload formats for
// their modalities. Text formats come from the loader registry.
var (
	ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp"}
	AudioExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"}
)

// mimesByExt maps each accepted extension onto the MIME types its content
// may sniff as. Detection uses magic bytes; a .pdf that sniffs as an
// executable is rejected no matter what its name says.
var mimesByExt = map[string][]string{
	".pdf":  {"application/pdf"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
	".txt":  {"text/plain", "text/csv"},
	".md":   {"text/plain", "text/markdown", "text/html"},
	".html": {"text/html", "text/plain"},
	".htm":  {"text/html", "text/plain"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"},
	".png":  {"image/png"},
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".gif":  {"image/gif"},
	".bmp":  {"image/bmp", "image/x-ms-bmp"},
	".mp3":  {"audio/mpeg"},
	".wav":  {"audio/wav", "audio/x-wav"},
	".m4a":  {"audio/x-m4a", "audio/mp4", "video/mp4"},
	".flac": {"audio/flac", "audio/x-flac"},
	".ogg":  {"audio/ogg", "application/ogg"},
}

// validateUpload checks the filename extension against the modality's
// allow-list and sniffs the content's MIME type. Returns the detected
// content type on success. All failures are validation errors; nothing has
// been stored when they surface.
func validateUpload(modality schema.Modality, filename string, data []byte) (string, error) {
	if !modality.Valid() {
		return "", ragerr.NewValidation("modality", "unknown modality %q", modality)
	}
	if strings.TrimSpace(filename) == "" {
		return "", ragerr.NewValidation("filename", "filename is required")
	}
	if len(data) == 0 {
		return "", ragerr.NewValidation("file", "file is empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	allowed := extensionsFor(modality)
	if !containsString(allowed, ext) {
		return "", ragerr.NewValidation("filename", "unsupported %s file type %q, allowed: %s",
			modality, ext, strings.Join(allowed, ", "))
	}

	detected := mimetype.Detect(data)
	if !matchesAny(detected, mimesByExt[ext]) {
		return "", ragerr.NewValidation("file", "content of %q detected as %s, which does not match %s",
			filename, detected.String(), ext)
	}

	return detected.String(), nil
}

// extensionsFor returns the upload allow-list for a modality.
func extensionsFor(modality schema.Modality) []string {
	switch modality {
	case schema.ModalityImage:
		return ImageExtensions
	case schema.ModalityAudio:
		return AudioExtensions
	default:
		return loaders.TextExtensions
	}
}

// matchesAny reports whether the detected type equals, or is an alias of,
// any of the wanted MIME types.
func matchesAny(detected *mimetype.MIME, wanted []string) bool {
	for _, w := range wanted {
		if detected.Is(w) {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
