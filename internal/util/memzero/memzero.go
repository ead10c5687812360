// Package memzero wipes secret bytes, such as decoded or unsealed private
// keys and derived sealing keys, once they are no longer needed.
package memzero

import "crypto/subtle"

// Zero overwrites every buffer in bufs with zeros.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	}
}
