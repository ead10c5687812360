// Package gateway is the client side of a gateway session: it dials the
// WebSocket, answers the device challenge, correlates requests with
// responses, fans out server events and keeps the connection alive.
//
// A Client survives involuntary drops by handing off to a reconnect
// supervisor and holds chat messages sent while offline in a queue that is
// drained after the next successful connect.
package gateway
