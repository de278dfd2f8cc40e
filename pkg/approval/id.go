package approval

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Callback tokens embed the batch id, and the whole token must fit a 64-byte
// transport budget. Ids longer than this, or containing the token field
// separator, travel as a hash instead.
const maxTokenIDLen = 32

// NewBatchID derives a batch id from the run's start time. Second resolution
// is enough: batches are created once per weekly run.
func NewBatchID(t time.Time) string {
	return t.UTC().Format("20060102-150405")
}

// TokenID returns the identifier to embed in callback tokens for a batch:
// the raw id when it fits, a hashed stand-in otherwise. The store resolves
// hashed ids back to batches by scanning.
func TokenID(batchID string) string {
	if len(batchID) <= maxTokenIDLen && !strings.Contains(batchID, ":") {
		return batchID
	}
	return hashedID(batchID)
}

// hashedID is "h" plus the first 15 hex characters of the id's SHA-256.
func hashedID(batchID string) string {
	sum := sha256.Sum256([]byte(batchID))
	return "h" + hex.EncodeToString(sum[:])[:15]
}
