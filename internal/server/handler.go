package server

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"parley/internal/secret"
	"parley/internal/wire"
)

// handler owns one accepted connection: its socket, its session channel, its
// receive worker and its outbound writer. Created only after the handshake
// succeeded and the username was registered.
//
// All outbound traffic goes through the ordered queue and the writer
// goroutine drains it, so a recipient that stops reading blocks its own
// writer only. The queue is unbounded; it stops growing when the connection
// is stopped.
type handler struct {
	conn     net.Conn
	username string
	session  *secret.Channel
	st       *state
	log      *log.Logger

	outMu sync.Mutex
	out   [][]byte
	outCh chan struct{}

	quit     chan struct{}
	stopOnce sync.Once
}

func newHandler(conn net.Conn, username string, session *secret.Channel, st *state, logger *log.Logger) *handler {
	return &handler{
		conn:     conn,
		username: username,
		session:  session,
		st:       st,
		log:      logger,
		outCh:    make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
}

// enqueue appends a ready wire frame to the outbound queue. Never blocks.
func (h *handler) enqueue(frame []byte) {
	h.outMu.Lock()
	h.out = append(h.out, frame)
	h.outMu.Unlock()
	select {
	case h.outCh <- struct{}{}:
	default:
	}
}

// sealAndEnqueue seals plaintext under this connection's session key and
// queues the frame for the writer.
func (h *handler) sealAndEnqueue(plaintext []byte) error {
	tok, err := h.session.Seal(plaintext)
	if err != nil {
		return err
	}
	h.enqueue(tok)
	return nil
}

// writeLoop is the connection's only socket writer. It drains the outbound
// queue in order; a write failure ends the connection.
func (h *handler) writeLoop() {
	for {
		select {
		case <-h.quit:
			return
		case <-h.outCh:
		}
		for {
			h.outMu.Lock()
			if len(h.out) == 0 {
				h.outMu.Unlock()
				break
			}
			frame := h.out[0]
			h.out = h.out[1:]
			h.outMu.Unlock()

			if err := wire.Send(h.conn, frame); err != nil {
				if !errors.Is(err, net.ErrClosed) {
					h.log.Printf("send to %s: %v", h.username, err)
				}
				h.stop()
				return
			}
		}
	}
}

// run is the connection's receive worker. Every exit path deregisters the
// handler and stops both workers; nothing here may take down a sibling
// connection or the listener.
func (h *handler) run() {
	defer h.teardown()

	for {
		select {
		case <-h.quit:
			return
		default:
		}

		if err := h.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return
		}
		tok, err := wire.Receive(h.conn)
		if err != nil {
			if wire.IsTimeout(err) {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				h.log.Printf("receive from %s: %v", h.username, err)
			}
			return
		}

		plain, err := h.session.Open(tok)
		if err != nil {
			h.log.Printf("bad envelope from %s: %v", h.username, err)
			return
		}
		env, err := wire.DecodeEnvelope(plain)
		if err != nil {
			h.log.Printf("bad envelope from %s: %v", h.username, err)
			return
		}
		if !h.dispatch(env) {
			return
		}
	}
}

// dispatch handles one decoded envelope and reports whether the worker
// should keep running.
func (h *handler) dispatch(env any) bool {
	switch env := env.(type) {
	case wire.Action:
		switch env.Name {
		case wire.ActionEnd:
			return false
		case wire.ActionGetAll:
			reply, err := wire.EncodeRequestResult(wire.RequestResult{
				RequestType: wire.RequestGetAll,
				Records:     h.st.snapshot(),
			})
			if err == nil {
				err = h.sealAndEnqueue(reply)
			}
			if err != nil {
				h.log.Printf("history reply to %s: %v", h.username, err)
				return false
			}
		}
		return true

	case wire.ChatMessage:
		// The sender's identity comes from the handshake, never from
		// the envelope. The body stays opaque ciphertext.
		env.User = h.username
		h.st.appendAndBroadcast(env)
		return true

	default:
		// Clients have no business sending request_result.
		h.log.Printf("unexpected envelope from %s", h.username)
		return false
	}
}

func (h *handler) teardown() {
	if h.st.remove(h) {
		h.log.Printf("logout: %s", h.username)
	}
	h.stop()
}

// stop signals both workers and unblocks any pending read or write.
func (h *handler) stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		_ = h.conn.Close()
	})
}
