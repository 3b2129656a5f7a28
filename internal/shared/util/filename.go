package util

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxExtensionLen = 8

// DisplayName reduces a client-supplied file name to its last path element
// with control characters removed. Both separators count, whatever the OS.
func DisplayName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}

// SafeExtension returns the lowercased extension of name when it is short and
// alphanumeric, and "" otherwise.
func SafeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(DisplayName(name)))
	if len(ext) < 2 || len(ext) > maxExtensionLen {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
