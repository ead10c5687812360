package types

// ConnectionState is the lifecycle state of the gateway connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnecting
)

// String returns the lower-case name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// ChallengeState is the most recent connect.challenge seen on the socket.
type ChallengeState struct {
	Nonce string
	TS    int64
}

// IsZero reports whether no challenge has been recorded.
func (c ChallengeState) IsZero() bool { return c.Nonce == "" && c.TS == 0 }
