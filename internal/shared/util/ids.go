package util

import (
	"strings"

	"github.com/google/uuid"
)

// ParseID validates a client-supplied record id and returns its canonical form.
func ParseID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
