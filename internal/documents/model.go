package documents

import (
	"strconv"
	"time"
)

// Document is an uploaded file and the text extracted from it.
type Document struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalText *string   `json:"originalText"`
	FileType     string    `json:"fileType"`
	FileSize     string    `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Text returns the extracted text, or "" when none was stored.
func (d Document) Text() string {
	if d.OriginalText == nil {
		return ""
	}
	return *d.OriginalText
}

// FormatSize renders a byte count the way documents store it.
func FormatSize(n int64) string {
	return strconv.FormatInt(n, 10)
}
