// Package client implements the connecting side of the protocol: dial,
// bootstrap handshake, session-key negotiation, the framed send path and a
// single receive worker feeding a drain-once delivery queue.
//
// The lifecycle runs Disconnected → Connecting → HandshakeSent →
// Authenticated → Active → Closing → Closed, with Rejected as the terminal
// state of a refused handshake. Message bodies are encrypted under the room
// secret before they ever touch an envelope, so the relay only handles
// ciphertext.
//
// Delivery is at-least-once: a message broadcast in the window between the
// handshake and the history reply arrives both live and in the replay, and
// the queue keeps no delivered set, so embedders that care should
// deduplicate on content and timestamp.
package client
