// Package server implements the relay: a TCP listener that authenticates
// clients against the shared server secret, issues each connection an
// ephemeral session key, stores the append-only chat history and broadcasts
// new messages to every registered connection.
//
// Concurrency model: one accept loop plus one receive worker per accepted
// connection. The history and the presence registry live in a single
// mutex-guarded state object injected into every handler; append+broadcast
// runs as one critical section so all observers agree on message order.
// Message bodies are end-to-end ciphertext under the room secret and pass
// through the server untouched.
package server
