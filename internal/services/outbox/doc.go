// Package outbox holds chat messages sent while the gateway is unreachable
// and flushes them, in order, once a connection is back.
//
// Delivery is bounded-effort: a drain pass tries each message once and drops
// it if the send fails, so one poisoned message cannot block the rest.
package outbox
