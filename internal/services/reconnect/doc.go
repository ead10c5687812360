// Package reconnect decides when and how to retry after an involuntary
// connection drop.
//
// A Supervisor runs at most one retry sequence at a time. Each sequence makes
// up to Policy.MaxAttempts attempts with exponential backoff plus jitter,
// bounds every attempt with Policy.AttemptTimeout, and gives up with
// ErrExhausted rather than retrying forever. Performing a single attempt is
// the Target's job, not the Supervisor's.
package reconnect
