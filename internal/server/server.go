package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"parley/internal/secret"
	"parley/internal/wire"
)

const (
	// pollInterval is the read/accept deadline used as a cooperative
	// cancellation poll. Not an application deadline; a slow peer is
	// never penalized by it.
	pollInterval = 500 * time.Millisecond

	// handshakeTimeout bounds how long an accepted socket may take to
	// complete the bootstrap exchange.
	handshakeTimeout = 10 * time.Second

	// sessionKeyLength is the passphrase length behind minted session
	// keys.
	sessionKeyLength = 256
)

// Config carries the server's wiring.
type Config struct {
	// Addr is the TCP listen address, e.g. ":3333".
	Addr string

	// ServerSecret is the encoded bootstrap key shared with every
	// client. Validated before any socket is opened.
	ServerSecret string

	// AcceptedVersions overrides the protocol versions the handshake
	// admits. Defaults to the current wire.ProtocolVersion only.
	AcceptedVersions []string

	// Logger defaults to log.Default.
	Logger *log.Logger
}

// Server owns the listener, the presence registry and the chat history. The
// history is memory-resident and append-only; it does not survive a restart.
type Server struct {
	addr      string
	bootstrap *secret.Channel
	accepted  map[string]bool
	log       *log.Logger
	st        *state

	mu sync.Mutex
	ln net.Listener

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New validates the configuration. A malformed server secret fails here,
// before any I/O.
func New(cfg Config) (*Server, error) {
	bootstrap, err := secret.NewChannel(cfg.ServerSecret)
	if err != nil {
		return nil, fmt.Errorf("server secret: %w", err)
	}
	versions := cfg.AcceptedVersions
	if len(versions) == 0 {
		versions = []string{wire.ProtocolVersion}
	}
	accepted := make(map[string]bool, len(versions))
	for _, v := range versions {
		accepted[v] = true
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		addr:      cfg.Addr,
		bootstrap: bootstrap,
		accepted:  accepted,
		log:       logger,
		st:        newState(logger),
		done:      make(chan struct{}),
	}, nil
}

// ListenAndServe binds the configured address and serves until Shutdown.
// Bind and accept failures are the only process-fatal errors.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. Each accepted socket gets
// its own handshake goroutine and, on success, a dedicated handler worker.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		ln.Close()
		return nil
	default:
	}
	s.ln = ln
	s.mu.Unlock()

	tcp, _ := ln.(*net.TCPListener)
	for {
		select {
		case <-s.done:
			return nil
		default:
		}
		if tcp != nil {
			// Bounded accept so the shutdown flag is observed
			// between iterations.
			if err := tcp.SetDeadline(time.Now().Add(pollInterval)); err != nil {
				return err
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			if wire.IsTimeout(err) {
				continue
			}
			select {
			case <-s.done:
				return nil
			default:
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handshake(conn)
		}()
	}
}

// handshake validates one accepted socket and promotes it to a live handler.
// Every failure here is scoped to this attempt: the socket is closed, no
// registration is left behind, and the listener keeps running.
func (s *Server) handshake(conn net.Conn) {
	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		conn.Close()
		return
	}
	frame, err := wire.ReceiveLimited(conn, wire.MaxHandshakeFrame)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.log.Printf("handshake read from %s: %v", conn.RemoteAddr(), err)
		}
		conn.Close()
		return
	}
	plain, err := s.bootstrap.Open(frame)
	if err != nil {
		// Wrong server secret or garbage. Drop the attempt.
		s.log.Printf("handshake auth failure from %s", conn.RemoteAddr())
		conn.Close()
		return
	}
	var req wire.HandshakeRequest
	if err := json.Unmarshal(plain, &req); err != nil {
		s.log.Printf("handshake parse from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	if !s.accepted[req.Version] {
		s.reject(conn, wire.ReasonInvalidVersion)
		conn.Close()
		return
	}

	key, err := secret.Generate(sessionKeyLength)
	if err != nil {
		s.log.Printf("mint session key: %v", err)
		conn.Close()
		return
	}
	session, err := secret.NewChannel(key)
	if err != nil {
		s.log.Printf("mint session key: %v", err)
		conn.Close()
		return
	}

	reply, err := json.Marshal(wire.HandshakeReply{Success: true, Key: key})
	if err != nil {
		conn.Close()
		return
	}
	tok, err := s.bootstrap.Seal(reply)
	if err != nil {
		conn.Close()
		return
	}

	h := newHandler(conn, req.Username, session, s.st, s.log)
	switch err := s.st.registerAndReply(h, tok); {
	case errors.Is(err, errNameTaken):
		// Name taken: reject and close, never register a second
		// handler for the same user.
		s.reject(conn, wire.ReasonUserOnline)
		conn.Close()
		return
	case err != nil:
		// Shutdown began while this handshake was in flight.
		conn.Close()
		return
	}

	s.log.Printf("login: %s", req.Username)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		h.run()
	}()
	go func() {
		defer s.wg.Done()
		h.writeLoop()
	}()
}

// reject sends a failure reply under the bootstrap channel. Best effort; the
// attempt is over either way.
func (s *Server) reject(conn net.Conn, reason string) {
	reply, err := json.Marshal(wire.HandshakeReply{Success: false, Reason: reason})
	if err != nil {
		return
	}
	tok, err := s.bootstrap.Seal(reply)
	if err != nil {
		return
	}
	_ = wire.Send(conn, tok)
}

// Shutdown stops accepting, ends every live connection and waits for all
// workers to exit. A handshake still in flight when Shutdown runs is refused
// at registration, so waiting it out is bounded by the handshake timeout.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.ln != nil {
			_ = s.ln.Close()
		}
		s.mu.Unlock()
	})
	s.st.endAll()
	s.wg.Wait()
}

// Addr returns the bound listen address, useful when Addr was ":0".
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Online reports whether a user is currently registered.
func (s *Server) Online(username string) bool {
	return s.st.isOnline(username)
}

// History returns a copy of the stored message sequence. Bodies are
// ciphertext under the room secret, which the server does not hold.
func (s *Server) History() []wire.ChatMessage {
	return s.st.snapshot()
}
