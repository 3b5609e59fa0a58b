package client_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"parley/internal/client"
	"parley/internal/secret"
)

func mustKey(t *testing.T) string {
	t.Helper()
	key, err := secret.Generate(32)
	require.NoError(t, err)
	return key
}

func TestDialRejectsMalformedSecretsBeforeIO(t *testing.T) {
	// An address nothing listens on: a secret error must win before any
	// connect attempt happens.
	_, err := client.Dial(client.Config{
		Addr:         "127.0.0.1:1",
		Username:     "alice",
		ServerSecret: "garbage",
		RoomSecret:   mustKey(t),
	})
	require.ErrorIs(t, err, secret.ErrKeyFormat)

	_, err = client.Dial(client.Config{
		Addr:         "127.0.0.1:1",
		Username:     "alice",
		ServerSecret: mustKey(t),
		RoomSecret:   "garbage",
	})
	require.ErrorIs(t, err, secret.ErrKeyFormat)
}

func TestDialConnectionRefused(t *testing.T) {
	// Grab a port that is guaranteed free, then close it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = client.Dial(client.Config{
		Addr:         addr,
		Username:     "alice",
		ServerSecret: mustKey(t),
		RoomSecret:   mustKey(t),
	})
	require.ErrorIs(t, err, client.ErrRefused)
}

func TestDialUnresolvableAddress(t *testing.T) {
	_, err := client.Dial(client.Config{
		Addr:         "host.invalid:3333",
		Username:     "alice",
		ServerSecret: mustKey(t),
		RoomSecret:   mustKey(t),
	})
	require.ErrorIs(t, err, client.ErrAddress)
}

func TestRejectErrorMessages(t *testing.T) {
	require.Contains(t, (&client.RejectError{Reason: "UserOnline"}).Error(), "already online")
	require.Contains(t, (&client.RejectError{Reason: "InvalidVersion"}).Error(), "version")
	require.Contains(t, (&client.RejectError{Reason: "other"}).Error(), "other")
}

func TestStateString(t *testing.T) {
	require.Equal(t, "active", client.Active.String())
	require.Equal(t, "rejected", client.Rejected.String())
}
