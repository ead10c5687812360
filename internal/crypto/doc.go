// Package crypto exposes the minimal primitives used by gatelink.
//
// Contents
//
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Device identifier derivation and short display fingerprints
//     (DeriveDeviceID, Fingerprint)
//   - The canonical device-auth payload the gateway verifies
//     (BuildAuthPayload)
//   - Base64 helpers, including the unpadded base64url form used on the wire
//
// # Notes
//
// Key types are the fixed-size arrays defined in internal/domain.
package crypto
