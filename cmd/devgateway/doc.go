// Package main runs the in-memory development gateway used by gatelink
// during development and tests. It speaks the gateway WebSocket protocol on
// "/" and "/ws" and exposes admin routes for driving clients from outside.
//
// Commands
//
//	devgateway serve [--addr :18789] [--token T] [--skip-challenge] [--tick-ms N]
//	    Listen for clients. GET /metrics serves Prometheus metrics and
//	    GET /healthz answers "ok".
//
//	devgateway drop [--url http://127.0.0.1:18789]
//	    Close every client connection abruptly, to exercise reconnects.
//
//	devgateway inject <event> [json-payload]
//	    Broadcast an event to every authenticated client.
//
//	devgateway push-tokens
//	    Print the push registrations received so far.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Every connect is verified: device id derivation, challenge nonce and
//     Ed25519 signature over the v1/v2 auth payload.
//   - chat.send is echoed back as a streamed run of chat events.
//   - The default listen address is :18789.
package main
