// Package id mints the public identifiers handed out by the API. Loans are
// addressed by these ids externally; the numeric database key never leaves
// the repository layer.
package id

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID32 returns a 32-character lowercase hex id from 16 random bytes.
// Callers embed it in URLs and idempotency keys, so it carries no
// separators or prefixes.
func NewID32() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
