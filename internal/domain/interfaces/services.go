package interfaces

import domaintypes "gatelink/internal/domain/types"

// IdentityService loads the device identity and signs with it.
type IdentityService interface {
	LoadOrCreate() (domaintypes.DeviceIdentity, error)
	Sign(payload []byte, id domaintypes.DeviceIdentity) (string, error)
}
