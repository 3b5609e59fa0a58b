package wire

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// shrinkPoll tightens the stall window so stall tests finish quickly.
func shrinkPoll(t *testing.T, interval time.Duration, limit int) {
	t.Helper()
	oldInterval, oldLimit := pollInterval, stallLimit
	pollInterval, stallLimit = interval, limit
	t.Cleanup(func() { pollInterval, stallLimit = oldInterval, oldLimit })
}

func pipe(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	return c1, c2
}

func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 7, chunkSize - 1, chunkSize, chunkSize + 1, 3 << 20}
	for _, size := range sizes {
		c1, c2 := pipe(t)

		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i % 251)
		}

		sendErr := make(chan error, 1)
		go func() { sendErr <- Send(c1, payload) }()

		got, err := Receive(c2)
		require.NoError(t, err, "size %d", size)
		require.NoError(t, <-sendErr, "size %d", size)
		require.Equal(t, payload, got, "size %d", size)
	}
}

func TestReceiveAcrossSmallSegments(t *testing.T) {
	c1, c2 := pipe(t)

	payload := make([]byte, 10_000)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := make([]byte, lengthSize+len(payload))
	binary.BigEndian.PutUint64(frame, uint64(len(payload)))
	copy(frame[lengthSize:], payload)

	go func() {
		for off := 0; off < len(frame); off += 3 {
			end := off + 3
			if end > len(frame) {
				end = len(frame)
			}
			if _, err := c1.Write(frame[off:end]); err != nil {
				return
			}
		}
	}()

	got, err := Receive(c2)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestStalledPeer(t *testing.T) {
	shrinkPoll(t, 10*time.Millisecond, 5)
	c1, c2 := pipe(t)

	var header [lengthSize]byte
	binary.BigEndian.PutUint64(header[:], 100)
	go c1.Write(header[:])

	start := time.Now()
	_, err := Receive(c2)
	require.ErrorIs(t, err, ErrTransferStalled)
	require.Less(t, time.Since(start), 2*time.Second, "stall detection must be bounded")
}

func TestStalledMidPayload(t *testing.T) {
	shrinkPoll(t, 10*time.Millisecond, 5)
	c1, c2 := pipe(t)

	var header [lengthSize]byte
	binary.BigEndian.PutUint64(header[:], 100)
	go func() {
		c1.Write(header[:])
		c1.Write([]byte("only part of it"))
	}()

	_, err := Receive(c2)
	require.ErrorIs(t, err, ErrTransferStalled)
}

func TestIdlePollTimeout(t *testing.T) {
	_, c2 := pipe(t)

	require.NoError(t, c2.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
	_, err := Receive(c2)
	require.Error(t, err)
	require.True(t, IsTimeout(err), "idle expiry must be retryable, got %v", err)
}

func TestReceiveLimited(t *testing.T) {
	c1, c2 := pipe(t)

	go Send(c1, make([]byte, MaxHandshakeFrame+1))
	_, err := ReceiveLimited(c2, MaxHandshakeFrame)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}
