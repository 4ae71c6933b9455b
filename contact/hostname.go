package contact

import (
	"encoding/base32"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionServiceIDLength is the length of a v3 onion service ID without the
// ".onion" label: 35 bytes (public key, checksum, version) in base32.
const OnionServiceIDLength = 56

const onionSuffix = ".onion"

var serviceIDEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NormalizeHostname lowercases hostname and strips a trailing ".onion"
// label, yielding the canonical registry key.
func NormalizeHostname(hostname string) string {
	return strings.TrimSuffix(strings.ToLower(hostname), onionSuffix)
}

// ValidOnionHostname reports whether hostname is a well-formed v3 onion
// service ID, with or without the ".onion" suffix. It verifies the length,
// the base32 encoding, the embedded checksum, and the version byte.
func ValidOnionHostname(hostname string) bool {
	host := NormalizeHostname(hostname)
	if len(host) != OnionServiceIDLength {
		return false
	}

	raw, err := serviceIDEncoding.DecodeString(strings.ToUpper(host))
	if err != nil || len(raw) != 35 {
		return false
	}
	if raw[34] != 0x03 {
		return false
	}

	sum := serviceIDChecksum(raw[:32])
	return raw[32] == sum[0] && raw[33] == sum[1]
}

// OnionHostnameFromPublicKey derives the v3 onion service ID for an ed25519
// public key, without the ".onion" suffix.
func OnionHostnameFromPublicKey(publicKey [32]byte) string {
	sum := serviceIDChecksum(publicKey[:])

	raw := make([]byte, 35)
	copy(raw, publicKey[:])
	raw[32] = sum[0]
	raw[33] = sum[1]
	raw[34] = 0x03

	return strings.ToLower(serviceIDEncoding.EncodeToString(raw))
}

// serviceIDChecksum computes the two checksum bytes embedded in a v3 onion
// service ID: SHA3-256(".onion checksum" || publicKey || 0x03)[:2].
func serviceIDChecksum(publicKey []byte) [2]byte {
	digest := sha3.New256()
	digest.Write([]byte(".onion checksum"))
	digest.Write(publicKey)
	digest.Write([]byte{0x03})
	sum := digest.Sum(nil)
	return [2]byte{sum[0], sum[1]}
}
