package types

// DeviceID is the lowercase hex SHA-256 of a device's Ed25519 public key.
type DeviceID string

// String returns the string form of the device identifier.
func (id DeviceID) String() string { return string(id) }

// SessionKey names a chat session on the gateway (for example "main").
type SessionKey string

// String returns the string form of the session key.
func (k SessionKey) String() string { return string(k) }

// RunID identifies one agent run streaming into a session.
type RunID string

// String returns the string form of the run identifier.
func (id RunID) String() string { return string(id) }
