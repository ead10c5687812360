package types

// DeviceIdentity is the long-lived signing identity of this client install.
//
// DeviceID is always derived from PublicKey; stores re-derive it on load.
type DeviceIdentity struct {
	DeviceID    DeviceID
	PublicKey   Ed25519Public
	PrivateKey  Ed25519Private
	CreatedAtMs int64
}
