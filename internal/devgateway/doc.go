// Package devgateway is an in-memory gateway for development and tests.
//
// It upgrades connections on "/" and "/ws", issues a connect.challenge,
// verifies the signed device block of connect, and answers chat.send,
// chat.history, chat.subscribe, sessions.list and device.push.register.
// chat.send is echoed back as a run of delta chat events followed by a
// final one.
//
// Admin routes
//
//	POST /admin/drop
//	    Close every WebSocket abruptly.
//
//	POST /admin/events { "event": name, "payload": {...} }
//	    Broadcast an event to every authenticated connection.
//
//	GET /admin/push-tokens
//	    List device.push.register calls received so far.
//
//	GET /admin/sessions/{key}/history?limit=N
//	    Return stored messages of a session.
//
// All state is held in memory and lost on exit.
package devgateway
