// Package checksum computes content digests used for optimistic concurrency
// on chapter writes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for text content.
func String(s string) string {
	return Sum([]byte(s))
}

// Matches reports whether ifMatch is empty or names the digest of content.
// Surrounding quotes, as in HTTP entity tags, and hex case are ignored.
func Matches(ifMatch, content string) bool {
	ifMatch = strings.Trim(strings.TrimSpace(ifMatch), `"`)
	return ifMatch == "" || strings.EqualFold(ifMatch, String(content))
}
