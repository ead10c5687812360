// Package commands defines the gatelink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - identity       Print the device id and fingerprint, creating the identity if needed
//   - connect        Connect and stream gateway events until interrupted
//   - send           Send a chat message and optionally wait for the reply
//   - history        Print recent messages of a session
//   - sessions       List sessions
//   - push           Register a push token with the gateway
//
// # Implementation
//
// The root command builds the dependency graph (stores, identity service,
// gateway client) before any subcommand runs. Commands that talk to the
// gateway connect to --host, or to the endpoint saved by the last
// successful connect when --host is omitted.
package commands
