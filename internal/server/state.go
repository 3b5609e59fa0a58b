package server

import (
	"errors"
	"log"
	"sync"

	"parley/internal/wire"
)

// errNameTaken reports a registration attempt for a username that is
// currently online.
var errNameTaken = errors.New("username already registered")

// errShutdown reports a registration attempt after shutdown began.
var errShutdown = errors.New("server shutting down")

// state is the one shared object every connection handler works against: the
// append-only chat history and the presence registry. A single mutex
// serializes every read-modify-write, so appending a message and fanning it
// out run as one step and every observer sees history and live traffic in
// the same relative order. The mutex is never held across socket I/O; frames
// are queued under it and each connection's writer drains its own queue.
type state struct {
	mu       sync.Mutex
	history  []wire.ChatMessage
	handlers map[string]*handler
	closed   bool
	log      *log.Logger
}

func newState(logger *log.Logger) *state {
	return &state{
		handlers: make(map[string]*handler),
		log:      logger,
	}
}

// registerAndReply claims h's username and, still inside the critical
// section, queues the handshake reply as the connection's first outbound
// frame. The uniqueness check, the insert and the reply share one critical
// section: two racing connections with the same name can never both win, and
// no broadcast can slip into the new connection's queue ahead of its
// handshake reply. After endAll has run, registration is refused so no
// session can outlive shutdown.
func (st *state) registerAndReply(h *handler, frame []byte) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return errShutdown
	}
	if _, online := st.handlers[h.username]; online {
		return errNameTaken
	}
	h.enqueue(frame)
	st.handlers[h.username] = h
	return nil
}

// remove deregisters h. It reports false if h was already gone or its name
// is now held by a different handler.
func (st *state) remove(h *handler) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.handlers[h.username] != h {
		return false
	}
	delete(st.handlers, h.username)
	return true
}

func (st *state) isOnline(username string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, online := st.handlers[username]
	return online
}

// snapshot copies the history for a get_all reply.
func (st *state) snapshot() []wire.ChatMessage {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]wire.ChatMessage, len(st.history))
	copy(out, st.history)
	return out
}

// appendAndBroadcast stores rec and queues it for every registered handler,
// each sealed under that recipient's own session key. The writes happen on
// each recipient's writer goroutine, so one stalled recipient never delays
// the rest or the registry. One failing recipient never aborts delivery to
// the rest.
func (st *state) appendAndBroadcast(rec wire.ChatMessage) {
	payload, err := wire.EncodeMessage(rec)
	if err != nil {
		st.log.Printf("encode broadcast from %s: %v", rec.User, err)
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.history = append(st.history, rec)
	for _, h := range st.handlers {
		if err := h.sealAndEnqueue(payload); err != nil {
			st.log.Printf("broadcast to %s: %v", h.username, err)
		}
	}
}

// endAll refuses further registrations and stops every registered handler.
// Stops run outside the lock: each one makes the handler's workers exit and
// deregister, which needs the mutex.
func (st *state) endAll() {
	st.mu.Lock()
	st.closed = true
	all := make([]*handler, 0, len(st.handlers))
	for _, h := range st.handlers {
		all = append(all, h)
	}
	st.mu.Unlock()

	for _, h := range all {
		h.stop()
	}
}
