package core

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash returns the hex BLAKE3-256 digest of content. It identifies document
// content for conflict detection and version records.
func Hash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
