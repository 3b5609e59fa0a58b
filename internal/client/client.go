package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"parley/internal/daytime"
	"parley/internal/secret"
	"parley/internal/wire"
)

// Presence messages announced on join and leave.
const (
	HelloMessage = "Hello there!"
	ByeMessage   = "Bye!"
)

const (
	pollInterval       = 500 * time.Millisecond
	defaultDialTimeout = 10 * time.Second
	handshakeTimeout   = 10 * time.Second
)

// Connect-time errors, distinguishable per failure mode.
var (
	ErrAddress     = errors.New("client: address unresolvable")
	ErrRefused     = errors.New("client: connection refused")
	ErrUnavailable = errors.New("client: server unavailable")
)

// RejectError is a handshake rejection: the server answered, but said no.
// Terminal for the attempt; the socket is already closed.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	switch e.Reason {
	case wire.ReasonUserOnline:
		return "client: handshake rejected: username already online"
	case wire.ReasonInvalidVersion:
		return "client: handshake rejected: protocol version not accepted"
	default:
		return fmt.Sprintf("client: handshake rejected: %s", e.Reason)
	}
}

// Config carries everything needed to open a session.
type Config struct {
	// Addr is the server's TCP address, e.g. "127.0.0.1:3333".
	Addr string

	// Username must be unique among currently connected clients.
	Username string

	// ServerSecret is the encoded bootstrap key shared with the server.
	ServerSecret string

	// RoomSecret is the encoded end-to-end key shared with the other
	// participants. The server never sees it.
	RoomSecret string

	// DialTimeout defaults to 10s.
	DialTimeout time.Duration

	// Hello and Bye override the presence messages announced on join and
	// leave. Empty fields use the package defaults; NoPresence suppresses
	// both.
	Hello, Bye string
	NoPresence bool
}

// State is the session lifecycle position, exposed for logging and tests.
type State int32

const (
	Disconnected State = iota
	Connecting
	HandshakeSent
	Authenticated
	Rejected
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case HandshakeSent:
		return "handshake-sent"
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is one live connection to the relay. It owns the socket, the
// session and room channels and exactly one background receive worker.
// Inbound chat entries land in a single-consumer queue drained via Drain.
type Session struct {
	conn     net.Conn
	username string
	session  *secret.Channel
	room     *secret.Channel
	hello    string
	bye      string

	state   atomic.Int32
	writeMu sync.Mutex
	inbox   queue

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	errMu sync.Mutex
	err   error
}

// Dial connects, performs the bootstrap handshake and returns an active
// session: worker running, history requested, presence hello sent.
//
// Failures are distinguishable: secret.ErrKeyFormat before any I/O,
// ErrAddress/ErrRefused/ErrUnavailable from the connect step, RejectError
// for a handshake rejection (socket closed, terminal), secret.ErrDecrypt
// when the reply does not authenticate under the server secret.
func Dial(cfg Config) (*Session, error) {
	bootstrap, err := secret.NewChannel(cfg.ServerSecret)
	if err != nil {
		return nil, fmt.Errorf("server secret: %w", err)
	}
	room, err := secret.NewChannel(cfg.RoomSecret)
	if err != nil {
		return nil, fmt.Errorf("room secret: %w", err)
	}

	s := &Session{
		username: cfg.Username,
		room:     room,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.hello, s.bye = cfg.Hello, cfg.Bye
	if s.hello == "" {
		s.hello = HelloMessage
	}
	if s.bye == "" {
		s.bye = ByeMessage
	}
	if cfg.NoPresence {
		s.hello, s.bye = "", ""
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	s.state.Store(int32(Connecting))
	conn, err := net.DialTimeout("tcp", cfg.Addr, timeout)
	if err != nil {
		s.state.Store(int32(Disconnected))
		return nil, classifyDial(err)
	}

	key, err := s.handshake(conn, bootstrap)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sessionCh, err := secret.NewChannel(key)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("session key from server: %w", err)
	}
	s.conn = conn
	s.session = sessionCh
	s.state.Store(int32(Authenticated))

	// Active: exactly one receive worker, then catch up and say hello.
	s.wg.Add(1)
	go s.receive()
	s.state.Store(int32(Active))

	if err := s.sendAction(wire.ActionGetAll); err != nil {
		s.Close()
		return nil, err
	}
	if s.hello != "" {
		if err := s.Send(s.hello); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// handshake runs the bootstrap exchange and returns the issued session key.
func (s *Session) handshake(conn net.Conn, bootstrap *secret.Channel) (string, error) {
	req, err := json.Marshal(wire.HandshakeRequest{
		Username: s.username,
		Version:  wire.ProtocolVersion,
	})
	if err != nil {
		return "", err
	}
	tok, err := bootstrap.Seal(req)
	if err != nil {
		return "", err
	}
	if err := wire.Send(conn, tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.state.Store(int32(HandshakeSent))

	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return "", err
	}
	frame, err := wire.ReceiveLimited(conn, wire.MaxHandshakeFrame)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	plain, err := bootstrap.Open(frame)
	if err != nil {
		return "", fmt.Errorf("handshake reply: %w", err)
	}
	var reply wire.HandshakeReply
	if err := json.Unmarshal(plain, &reply); err != nil {
		return "", fmt.Errorf("handshake reply: %w", err)
	}
	if !reply.Success {
		s.state.Store(int32(Rejected))
		return "", &RejectError{Reason: reply.Reason}
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", err
	}
	return reply.Key, nil
}

// Send encrypts text under the room secret, stamps it with the current time
// of day and ships it in a session-sealed message envelope.
func (s *Session) Send(text string) error {
	body, err := s.room.SealString(text)
	if err != nil {
		return err
	}
	payload, err := wire.EncodeMessage(wire.ChatMessage{
		Message: body,
		Time:    daytime.Now().String(),
	})
	if err != nil {
		return err
	}
	return s.write(payload)
}

func (s *Session) sendAction(name string) error {
	payload, err := wire.EncodeAction(name)
	if err != nil {
		return err
	}
	return s.write(payload)
}

func (s *Session) write(payload []byte) error {
	tok, err := s.session.Seal(payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wire.Send(s.conn, tok)
}

// receive is the session's only background worker. Read timeouts are the
// cooperative shutdown poll and are retried silently; anything else ends the
// worker and is observable through Done and Err.
func (s *Session) receive() {
	defer s.wg.Done()
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			s.fail(err)
			return
		}
		tok, err := wire.Receive(s.conn)
		if err != nil {
			if wire.IsTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return // own Close
			}
			s.fail(err)
			return
		}

		plain, err := s.session.Open(tok)
		if err != nil {
			s.fail(err)
			return
		}
		env, err := wire.DecodeEnvelope(plain)
		if err != nil {
			s.fail(err)
			return
		}

		switch env := env.(type) {
		case wire.ChatMessage:
			if err := s.deliver(env); err != nil {
				s.fail(err)
				return
			}
		case wire.RequestResult:
			for _, rec := range env.Records {
				if err := s.deliver(rec); err != nil {
					s.fail(err)
					return
				}
			}
		default:
			s.fail(fmt.Errorf("%w: server sent an action", wire.ErrUnknownType))
			return
		}
	}
}

// deliver decrypts a record's body under the room secret and queues it.
func (s *Session) deliver(rec wire.ChatMessage) error {
	text, err := s.room.OpenString(rec.Message)
	if err != nil {
		return fmt.Errorf("message from %s: %w", rec.User, err)
	}
	rec.Message = text
	s.inbox.push(rec)
	return nil
}

// fail records the first terminal error and closes the socket so the send
// path fails fast too.
func (s *Session) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
	_ = s.conn.Close()
}

// Drain returns every queued entry, oldest first, handing each out exactly
// once. An empty slice means nothing new arrived.
func (s *Session) Drain() []wire.ChatMessage {
	return s.inbox.drain()
}

// Done is closed when the receive worker has exited, whether through Close
// or a connection failure. Check Err to tell the two apart.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that terminated the worker, or nil after a clean
// Close.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// State returns the session's lifecycle position.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Username returns the name this session registered under.
func (s *Session) Username() string {
	return s.username
}

// Close announces the leave message, sends the end action, closes the socket
// and joins the worker. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closing))
		if s.bye != "" {
			_ = s.Send(s.bye)
		}
		_ = s.sendAction(wire.ActionEnd)
		close(s.quit)
		_ = s.conn.Close()
		s.wg.Wait()
		s.state.Store(int32(Closed))
	})
	return nil
}

// classifyDial maps connect failures onto the package's error taxonomy.
func classifyDial(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrAddress, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", ErrRefused, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
