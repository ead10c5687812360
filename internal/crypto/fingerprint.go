package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"gatelink/internal/domain"
)

// DeriveDeviceID returns the lowercase hex SHA-256 digest of pub.
func DeriveDeviceID(pub []byte) domain.DeviceID {
	sum := sha256.Sum256(pub)
	return domain.DeviceID(hex.EncodeToString(sum[:]))
}

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}
