// Package store provides file-based persistence for gatelink's local state.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Files live under the user's configured home directory
// and are written atomically (temp file then rename).
//
// The package includes stores for:
//   - The device signing identity (IdentityFileStore), optionally with the
//     private key sealed under a passphrase
//   - The last gateway endpoint used (EndpointFileStore)
package store
