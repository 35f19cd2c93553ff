package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores serialized per-file findings so unchanged files can skip
// detection on re-scans.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// FindingsKey derives a cache key from the file content hash and the
// effective policy fingerprint: a change to either invalidates the entry.
func FindingsKey(contentHash, policyFingerprint string) string {
	digest := sha256.Sum256([]byte(contentHash + "|" + policyFingerprint))
	return "piiscan:v1:" + hex.EncodeToString(digest[:])
}
