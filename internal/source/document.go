package source

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document is one unit of text to scan, from a file or a URL.
type Document struct {
	// Path identifies the document: a filesystem path or the final URL.
	Path string
	// Text is the extracted plain text.
	Text string
	// Hash is the sha256 of the raw content, hex encoded.
	Hash string
	// SizeBytes is the raw content size before extraction.
	SizeBytes int64
}

// ContentHash returns the hex sha256 of raw.
func ContentHash(raw []byte) string {
	digest := sha256.Sum256(raw)
	return hex.EncodeToString(digest[:])
}
