package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

var supported = map[string]struct{}{
	MimePDF:  {},
	MimeDOCX: {},
	MimeText: {},
}

// IsSupported reports whether mediaType, after normalization, is accepted.
func IsSupported(mediaType string) bool {
	_, ok := supported[normalize(mediaType)]
	return ok
}

// ResolveMediaType returns the accepted media type for an upload. Generic
// declared types are resolved from content, then from the file extension.
func ResolveMediaType(declared, fileName string, data []byte) (string, error) {
	clean := normalize(declared)
	if !isGeneric(clean) {
		if IsSupported(clean) {
			return clean, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, clean)
	}

	resolved := sniff(data)
	if resolved == "application/zip" {
		resolved = mapOOXMLFromZip(data)
	}
	if resolved == "" || isGeneric(resolved) {
		resolved = fromExtension(fileName)
	}
	if !IsSupported(resolved) {
		if resolved == "" {
			resolved = clean
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, resolved)
	}
	return resolved, nil
}

func normalize(mediaType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mediaType, ";")[0]))
}

func isGeneric(mediaType string) bool {
	switch mediaType {
	case "", "application/octet-stream", "application/zip", "application/x-zip-compressed", "binary/octet-stream":
		return true
	default:
		return false
	}
}

func sniff(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return normalize(mimetype.Detect(data).String())
}

func fromExtension(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".docx":
		return MimeDOCX
	case ".txt", ".text":
		return MimeText
	default:
		return ""
	}
}

func mapOOXMLFromZip(data []byte) string {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return MimeDOCX
		}
	}
	return "application/zip"
}
