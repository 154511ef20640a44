// Package hippocampus implements the in-memory fast-index layer (C5):
// barcodes for dedup, compressed semantic summaries, typed association
// links, importance scoring, and spreading activation over the resulting
// semantic network.
package hippocampus

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/vestige-mem/vestige/pkg/types"
)

const barcodeHexLen = 32 // first 16 bytes of SHA-256, hex-encoded

// GenerateBarcode computes the (content_hash, temporal_hash) pair for one
// memory: identical content always
// yields the same content_hash, used for fast dedup; temporal_hash
// additionally folds in the encoding timestamp so repeat encodings of the
// same content remain distinguishable.
func GenerateBarcode(id, content string, timestampMs int64) types.Barcode {
	return types.Barcode{
		ID: id,
		ContentHash: contentHash(content),
		TemporalHash: temporalHash(content, timestampMs),
	}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:barcodeHexLen]
}

func temporalHash(content string, timestampMs int64) string {
	prefix := content
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], uint64(timestampMs))

	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])[:barcodeHexLen]
}
