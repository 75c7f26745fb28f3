// Package checksum fingerprints source documents so unchanged files can
// be skipped during sync.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

var bom = []byte("\xef\xbb\xbf")

// Normalize strips a UTF-8 byte order mark and converts CRLF line endings
// to LF. Documents that differ only in these respects parse identically.
func Normalize(data []byte) []byte {
	data = bytes.TrimPrefix(data, bom)
	if bytes.IndexByte(data, '\r') < 0 {
		return data
	}
	return bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
}

// Sum returns the hex-encoded SHA-256 digest of the normalized data.
func Sum(data []byte) string {
	h := sha256.Sum256(Normalize(data))
	return hex.EncodeToString(h[:])
}
