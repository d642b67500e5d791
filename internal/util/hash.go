package util

import (
	"fmt"
	"hash/fnv"
)

// FNV64 returns the FNV-1a 64-bit hash of s as a hex string. Used as a
// content fingerprint when a source does not report its own version.
func FNV64(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum64())
}
