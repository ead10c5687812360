package interfaces

import domaintypes "gatelink/internal/domain/types"

// DeviceIdentityStore persists the device signing identity.
//
// LoadDeviceIdentity returns the identity exactly as stored; callers are
// responsible for checking that DeviceID still matches PublicKey.
type DeviceIdentityStore interface {
	SaveDeviceIdentity(id domaintypes.DeviceIdentity) error
	LoadDeviceIdentity() (domaintypes.DeviceIdentity, bool, error)
}

// EndpointStore remembers the last gateway endpoint used, for reconnecting
// on the next launch.
type EndpointStore interface {
	SaveEndpoint(endpoint domaintypes.GatewayEndpoint) error
	LoadEndpoint() (domaintypes.GatewayEndpoint, bool, error)
}
