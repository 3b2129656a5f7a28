package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns a short hex digest identifying an upload in logs.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
