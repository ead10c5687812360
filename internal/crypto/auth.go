package crypto

import (
	"strconv"
	"strings"
)

// Auth payload versions. v2 binds a server challenge nonce.
const (
	AuthPayloadV1 = "v1"
	AuthPayloadV2 = "v2"
)

// BuildAuthPayload returns the pipe-delimited string a device signs during
// the connect handshake:
//
//	v1|deviceId|clientId|clientMode|role|scope1,scope2|signedAtMs|token
//	v2|deviceId|clientId|clientMode|role|scope1,scope2|signedAtMs|token|nonce
//
// The gateway rebuilds the same string to verify the signature, so field
// order and separators are fixed.
func BuildAuthPayload(
	deviceID, clientID, clientMode, role string,
	scopes []string,
	signedAtMs int64,
	token, nonce string,
) string {
	version := AuthPayloadV1
	if nonce != "" {
		version = AuthPayloadV2
	}
	parts := []string{
		version,
		deviceID,
		clientID,
		clientMode,
		role,
		strings.Join(scopes, ","),
		strconv.FormatInt(signedAtMs, 10),
		token,
	}
	if nonce != "" {
		parts = append(parts, nonce)
	}
	return strings.Join(parts, "|")
}
