package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// HashInput builds the byte sequence a block's id is derived from:
// decimal_height || concat(tx_id_i), with no separators or length
// prefixes. This is intentionally not collision-resistant against
// reordered or re-split transaction ids (see spec notes on the hash
// format) — replayers must reproduce this exact concatenation.
func HashInput(b *Block) string {
	var buf strings.Builder
	buf.WriteString(strconv.FormatInt(b.Height, 10))
	for _, tx := range b.Transactions {
		buf.WriteString(tx.ID)
	}
	return buf.String()
}

// ComputeBlockID returns the lowercase hex SHA-256 digest of b's hash
// input — the block's expected id.
func ComputeBlockID(b *Block) string {
	sum := sha256.Sum256([]byte(HashInput(b)))
	return hex.EncodeToString(sum[:])
}
