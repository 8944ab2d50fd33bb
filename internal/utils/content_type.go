package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

const ContentTypePDF = "application/pdf"

// NormalizeContentType lowercases a declared MIME type and strips its parameters.
func NormalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(mediaType)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// IsGenericContentType reports declared types that say nothing about the payload,
// in which case the bytes have to be sniffed.
func IsGenericContentType(contentType string) bool {
	switch NormalizeContentType(contentType) {
	case "", "application/octet-stream", "binary/octet-stream", "application/force-download", "application/download":
		return true
	}
	return false
}

func IsPDFContentType(contentType string) bool {
	switch NormalizeContentType(contentType) {
	case ContentTypePDF, "application/x-pdf", "application/acrobat", "applications/vnd.pdf", "text/pdf":
		return true
	}
	return false
}

func HasPDFExtension(filename string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(filename)), ".pdf")
}

// SafeFilename keeps a filename usable inside an object storage key.
func SafeFilename(filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == "/" || filename == "" {
		return "attachment.pdf"
	}
	var b strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return Truncate(b.String(), 200)
}
