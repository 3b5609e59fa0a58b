package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley/internal/wire"
)

func TestQueueDrainsExactlyOnce(t *testing.T) {
	var q queue
	q.push(wire.ChatMessage{User: "a", Message: "1"})
	q.push(wire.ChatMessage{User: "a", Message: "2"})

	got := q.drain()
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].Message)
	require.Equal(t, "2", got[1].Message)

	require.Empty(t, q.drain(), "entries are handed out once")

	q.push(wire.ChatMessage{User: "b", Message: "3"})
	got = q.drain()
	require.Len(t, got, 1)
	require.Equal(t, "3", got[0].Message)
}
