// Package checksum computes the SHA-256 digests stored alongside every image
// object. All storage backends report checksums in the same lowercase hex
// form so the files route can expose them unchanged.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Sum returns the hex SHA-256 of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Calculate drains reader and returns its hex SHA-256.
func Calculate(reader io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Copy writes reader to dst and returns the byte count and hex SHA-256 of
// what was written.
func Copy(dst io.Writer, reader io.Reader) (int64, string, error) {
	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, hasher), reader)
	if err != nil {
		return n, "", err
	}
	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}
