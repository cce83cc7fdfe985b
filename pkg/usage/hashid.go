package usage

import (
	"encoding/hex"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// pidLen is the byte length of the truncated digest. 16 bytes (32 hex
// characters) keeps log lines short while leaving no practical way to
// recover or confirm a path by brute force alone.
const pidLen = 16

// HashProject derives the fixed-length, irreversible project identifier
// from a real project path. The path itself is never written anywhere; only
// this digest appears in usage records.
func HashProject(path string) string {
	sum := blake3.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:pidLen])
}
