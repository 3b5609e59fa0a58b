package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley/internal/wire"
)

func TestActionRoundTrip(t *testing.T) {
	for _, name := range []string{wire.ActionEnd, wire.ActionGetAll} {
		b, err := wire.EncodeAction(name)
		require.NoError(t, err)

		got, err := wire.DecodeEnvelope(b)
		require.NoError(t, err)
		require.Equal(t, wire.Action{Name: name}, got)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := wire.ChatMessage{
		User:    "alice",
		Message: "gAAAAABl...opaque-room-ciphertext",
		Time:    "13:37:00",
	}
	b, err := wire.EncodeMessage(msg)
	require.NoError(t, err)

	got, err := wire.DecodeEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, msg, got, "ciphertext body must pass through verbatim")
}

func TestRequestResultRoundTrip(t *testing.T) {
	res := wire.RequestResult{
		RequestType: wire.RequestGetAll,
		Records: []wire.ChatMessage{
			{User: "alice", Message: "c1", Time: "09:00:00"},
			{User: "bob", Message: "c2", Time: "09:00:01"},
		},
	}
	b, err := wire.EncodeRequestResult(res)
	require.NoError(t, err)

	got, err := wire.DecodeEnvelope(b)
	require.NoError(t, err)
	require.Equal(t, res, got)
}

func TestEmptyHistoryResult(t *testing.T) {
	b, err := wire.EncodeRequestResult(wire.RequestResult{RequestType: wire.RequestGetAll})
	require.NoError(t, err)

	got, err := wire.DecodeEnvelope(b)
	require.NoError(t, err)
	require.Empty(t, got.(wire.RequestResult).Records)
}

func TestUnknownTagsRejected(t *testing.T) {
	cases := map[string]string{
		"unknown type":         `{"type":"presence"}`,
		"unknown action":       `{"type":"action","action":"drop_tables"}`,
		"unknown request_type": `{"type":"request_result","request_type":"get_some"}`,
		"missing type":         `{"message":"x"}`,
	}
	for name, raw := range cases {
		_, err := wire.DecodeEnvelope([]byte(raw))
		require.ErrorIs(t, err, wire.ErrUnknownType, name)
	}

	_, err := wire.EncodeAction("restart")
	require.ErrorIs(t, err, wire.ErrUnknownType)
}

func TestCorruptEnvelope(t *testing.T) {
	_, err := wire.DecodeEnvelope([]byte("not json at all"))
	require.ErrorIs(t, err, wire.ErrCorruptEnvelope)
}
