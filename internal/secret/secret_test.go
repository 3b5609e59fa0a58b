package secret_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"parley/internal/secret"
)

func TestGenerateProducesUsableKeys(t *testing.T) {
	// 300 exceeds one alphabet block, so the sampler has to repeat it.
	for _, length := range []int{1, 10, 64, 256, 300} {
		key, err := secret.Generate(length)
		require.NoError(t, err, "length %d", length)

		ch, err := secret.NewChannel(key)
		require.NoError(t, err, "generated key must decode, length %d", length)

		tok, err := ch.Seal([]byte("payload"))
		require.NoError(t, err)
		got, err := ch.Open(tok)
		require.NoError(t, err)
		require.Equal(t, []byte("payload"), got)
	}
}

func TestGenerateIsNotDeterministic(t *testing.T) {
	a, err := secret.Generate(32)
	require.NoError(t, err)
	b, err := secret.Generate(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "fresh salt per call, keys must differ")
}

func TestGenerateRejectsBadLength(t *testing.T) {
	_, err := secret.Generate(0)
	require.Error(t, err)
	_, err = secret.Generate(-5)
	require.Error(t, err)
}

func TestOpenWrongKey(t *testing.T) {
	key1, err := secret.Generate(32)
	require.NoError(t, err)
	key2, err := secret.Generate(32)
	require.NoError(t, err)

	ch1, err := secret.NewChannel(key1)
	require.NoError(t, err)
	ch2, err := secret.NewChannel(key2)
	require.NoError(t, err)

	tok, err := ch1.Seal([]byte("for ch1 only"))
	require.NoError(t, err)

	_, err = ch2.Open(tok)
	require.ErrorIs(t, err, secret.ErrDecrypt)
}

func TestOpenTamperedToken(t *testing.T) {
	key, err := secret.Generate(32)
	require.NoError(t, err)
	ch, err := secret.NewChannel(key)
	require.NoError(t, err)

	tok, err := ch.Seal([]byte("payload"))
	require.NoError(t, err)
	tok[len(tok)/2] ^= 0x01

	_, err = ch.Open(tok)
	require.ErrorIs(t, err, secret.ErrDecrypt)
}

func TestNewChannelRejectsMalformedKey(t *testing.T) {
	for _, bad := range []string{"", "not-a-key", "AAAA"} {
		_, err := secret.NewChannel(bad)
		require.ErrorIs(t, err, secret.ErrKeyFormat, "key %q", bad)
	}
}

func TestChannelTTLAcceptsFreshTokens(t *testing.T) {
	key, err := secret.Generate(32)
	require.NoError(t, err)
	ch, err := secret.NewChannelTTL(key, time.Hour)
	require.NoError(t, err)

	tok, err := ch.Seal([]byte("fresh"))
	require.NoError(t, err)
	got, err := ch.Open(tok)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), got)
}

func TestSealStringRoundTrip(t *testing.T) {
	key, err := secret.Generate(32)
	require.NoError(t, err)
	ch, err := secret.NewChannel(key)
	require.NoError(t, err)

	for _, text := range []string{"", "hi", "größer als ASCII, 你好"} {
		tok, err := ch.SealString(text)
		require.NoError(t, err)
		if text != "" {
			require.NotContains(t, tok, text, "token must not leak plaintext")
		}

		got, err := ch.OpenString(tok)
		require.NoError(t, err)
		require.Equal(t, text, got)
	}
}
