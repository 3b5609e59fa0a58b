package client

import (
	"sync"

	"parley/internal/wire"
)

// queue is the session's delivery queue: unbounded, filled by the receive
// worker, drained by a single consumer. Each entry is handed out exactly
// once, so consumers never track what they have already seen.
type queue struct {
	mu      sync.Mutex
	entries []wire.ChatMessage
}

func (q *queue) push(m wire.ChatMessage) {
	q.mu.Lock()
	q.entries = append(q.entries, m)
	q.mu.Unlock()
}

func (q *queue) drain() []wire.ChatMessage {
	q.mu.Lock()
	out := q.entries
	q.entries = nil
	q.mu.Unlock()
	return out
}
