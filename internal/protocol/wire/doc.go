// Package wire is the JSON frame codec for the gateway protocol.
//
// Every frame is a single JSON text message with a "type" discriminator:
//
//	{"type":"req","id":"<uuid>","method":"chat.send","params":{...}}
//	{"type":"res","id":"<uuid>","ok":true,"payload":{...}}
//	{"type":"res","id":"<uuid>","ok":false,"error":{"code":"...","message":"..."}}
//	{"type":"event","event":"chat","payload":{...},"seq":7}
//	{"type":"ping"} / {"type":"pong"}
//
// Encoding uses fixed struct field order so output is deterministic.
// Decoding ignores unknown fields, treats missing optional fields as absent,
// and reports malformed input as *ProtocolError.
package wire
