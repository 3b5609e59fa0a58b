// Package wire implements the transport layer shared by client and server:
// length-prefixed framing over TCP with stall detection, and the JSON
// envelope codec.
//
// Every exchange is one frame: an 8-byte big-endian length followed by the
// payload, read back in bounded chunks. Frame payloads are always ciphertext;
// the handshake pair travels under the long-lived server secret and
// everything after it under the per-connection session key.
//
// The envelope codec is a closed set of three variants tagged by a "type"
// field: action, message and request_result. Unknown tags are an explicit
// error so a peer speaking a different dialect is cut off rather than
// half-understood.
package wire
