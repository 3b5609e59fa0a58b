package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	lengthSize = 8
	chunkSize  = 4096

	// MaxFrameSize bounds ordinary frames. History replies grow with the
	// room's lifetime, so the cap is generous.
	MaxFrameSize = 64 << 20

	// MaxHandshakeFrame bounds the single handshake request/reply frame.
	MaxHandshakeFrame = 2048
)

// Receive polling knobs. A peer that announces a length and then makes no
// forward progress for stallLimit consecutive poll intervals is treated as
// lost. Variables rather than constants so tests can shrink the window.
var (
	pollInterval = 500 * time.Millisecond
	stallLimit   = 100
)

var (
	// ErrTransferStalled reports a peer that declared a frame length it
	// never delivered.
	ErrTransferStalled = errors.New("wire: transfer stalled")

	// ErrFrameTooLarge reports a declared length over the receive limit.
	ErrFrameTooLarge = errors.New("wire: frame too large")
)

// Send writes an 8-byte big-endian length followed by the payload as one
// logical write.
func Send(conn net.Conn, payload []byte) error {
	frame := make([]byte, lengthSize+len(payload))
	binary.BigEndian.PutUint64(frame[:lengthSize], uint64(len(payload)))
	copy(frame[lengthSize:], payload)
	_, err := conn.Write(frame)
	return err
}

// Receive reads one length-prefixed frame. The read deadline in effect when
// Receive is called governs how long it waits for the first byte, so callers
// can use a short deadline as a cooperative cancellation poll: a timeout
// before any byte arrives is returned as-is and may simply be retried (see
// IsTimeout). Once a frame has started, Receive switches to its own stall
// accounting and fails with ErrTransferStalled if the peer stops sending.
func Receive(conn net.Conn) ([]byte, error) {
	return ReceiveLimited(conn, MaxFrameSize)
}

// ReceiveLimited is Receive with a caller-chosen size limit, used for the
// handshake exchange where frames are bounded to MaxHandshakeFrame.
func ReceiveLimited(conn net.Conn, limit uint64) ([]byte, error) {
	var header [lengthSize]byte

	// The first read runs under the caller's deadline.
	n, err := conn.Read(header[:])
	if err != nil && (n == 0 || !IsTimeout(err)) {
		return nil, err
	}
	if n < lengthSize {
		if err := readFull(conn, header[n:]); err != nil {
			return nil, err
		}
	}

	length := binary.BigEndian.Uint64(header[:])
	if length > limit {
		return nil, fmt.Errorf("%w: %d bytes declared, limit %d", ErrFrameTooLarge, length, limit)
	}

	payload := make([]byte, length)
	if err := readFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// readFull reads len(buf) bytes in bounded chunks, counting consecutive
// zero-progress poll intervals so a silent peer cannot hang us forever.
func readFull(conn net.Conn, buf []byte) error {
	stalls := 0
	off := 0
	for off < len(buf) {
		end := off + chunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if err := conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return err
		}
		n, err := conn.Read(buf[off:end])
		off += n
		if err != nil {
			if !IsTimeout(err) {
				return err
			}
			if n == 0 {
				stalls++
				if stalls >= stallLimit {
					return ErrTransferStalled
				}
				continue
			}
		}
		stalls = 0
	}
	return nil
}

// IsTimeout reports whether err is a read-deadline expiry, the expected
// outcome of an idle cancellation poll.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
