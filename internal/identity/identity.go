// Package identity derives stable keys for context documents and their source files.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	documentPrefix = "ctx:"
	filePrefix     = "file:"
)

// Key returns the identity key of a document: a SHA-256 digest of the UTF-8
// bytes of content. The same content yields the same key on every run.
func Key(content string) string {
	return documentPrefix + Digest([]byte(content))
}

// FileKey returns a stable key for a source file path. Same path always yields the same key.
func FileKey(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	return filePrefix + Digest([]byte(normalized))
}

// Digest returns the hex-encoded SHA-256 of b.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
