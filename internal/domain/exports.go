package domain

import (
	interfaces "gatelink/internal/domain/interfaces"
	types "gatelink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	DeviceID        = types.DeviceID
	SessionKey      = types.SessionKey
	RunID           = types.RunID
	Ed25519Public   = types.Ed25519Public
	Ed25519Private  = types.Ed25519Private
	DeviceIdentity  = types.DeviceIdentity
	ConnectionState = types.ConnectionState
	ChallengeState  = types.ChallengeState
	GatewayEndpoint = types.GatewayEndpoint
	Attachment      = types.Attachment
	QueuedMessage   = types.QueuedMessage
	Usage           = types.Usage
	ChatMessage     = types.ChatMessage
	ChatEvent       = types.ChatEvent
)

// Connection states.
const (
	StateDisconnected  = types.StateDisconnected
	StateConnecting    = types.StateConnecting
	StateConnected     = types.StateConnected
	StateReconnecting  = types.StateReconnecting
	StateDisconnecting = types.StateDisconnecting
)

// Run states carried by chat events.
const (
	ChatStateStreaming = types.ChatStateStreaming
	ChatStateDelta     = types.ChatStateDelta
	ChatStateFinal     = types.ChatStateFinal
	ChatStateAborted   = types.ChatStateAborted
	ChatStateError     = types.ChatStateError
)

// LooksSecureHost is the "auto" transport-security heuristic.
var LooksSecureHost = types.LooksSecureHost

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService     = interfaces.IdentityService
	DeviceIdentityStore = interfaces.DeviceIdentityStore
	EndpointStore       = interfaces.EndpointStore
	MessageSink         = interfaces.MessageSink
	PushTokenProvider   = interfaces.PushTokenProvider
)
