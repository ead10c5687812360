// Package identity manages the device signing identity.
//
// It creates the Ed25519 key pair on first use, persists it via the
// domain.DeviceIdentityStore, heals a stored device id that no longer matches
// its public key, and signs handshake payloads.
package identity
