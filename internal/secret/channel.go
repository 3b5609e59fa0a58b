package secret

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/fernet/fernet-go"
)

var (
	// ErrKeyFormat reports key material that does not decode as a channel
	// key. Surfaced before any I/O happens.
	ErrKeyFormat = errors.New("secret: malformed key")

	// ErrDecrypt reports a token that failed authentication: wrong key,
	// tampering, or an expired issuance timestamp on a TTL channel.
	ErrDecrypt = errors.New("secret: decrypt failed")
)

// Channel is one keyed authenticated-encryption channel. Three exist in the
// protocol: bound to the server secret (handshake only), to a per-connection
// session key (every post-handshake envelope), and to the room secret (the
// message bodies, end to end; the server never holds that one).
//
// Tokens are fernet tokens: authenticated, carrying an issuance timestamp,
// and plain base64 text, so they embed directly into JSON fields.
type Channel struct {
	key    *memguard.Enclave
	maxAge time.Duration
}

// NewChannel validates encoded key material and seals it into guarded
// memory. Tokens never expire on a plain channel.
func NewChannel(encoded string) (*Channel, error) {
	return NewChannelTTL(encoded, 0)
}

// NewChannelTTL is NewChannel with a replay window: Open rejects tokens
// issued more than maxAge ago. maxAge <= 0 disables the check.
func NewChannelTTL(encoded string, maxAge time.Duration) (*Channel, error) {
	if _, err := fernet.DecodeKey(encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	return &Channel{
		key:    memguard.NewEnclave([]byte(encoded)),
		maxAge: maxAge,
	}, nil
}

// Seal encrypts and authenticates payload, returning the token.
func (c *Channel) Seal(payload []byte) ([]byte, error) {
	key, buf, err := c.openKey()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	tok, err := fernet.EncryptAndSign(payload, key)
	if err != nil {
		return nil, fmt.Errorf("secret: seal: %w", err)
	}
	return tok, nil
}

// Open verifies and decrypts a token produced by Seal under the same key.
func (c *Channel) Open(token []byte) ([]byte, error) {
	key, buf, err := c.openKey()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	ttl := c.maxAge
	if ttl <= 0 {
		ttl = -1 // negative disables fernet's expiry check
	}
	msg := fernet.VerifyAndDecrypt(token, ttl, []*fernet.Key{key})
	if msg == nil {
		return nil, ErrDecrypt
	}
	return msg, nil
}

// SealString and OpenString carry tokens as strings, the form they take
// inside message envelopes.

func (c *Channel) SealString(plaintext string) (string, error) {
	tok, err := c.Seal([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

func (c *Channel) OpenString(token string) (string, error) {
	msg, err := c.Open([]byte(token))
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

// openKey decodes the enclave-held key for one operation. The caller must
// destroy the returned buffer.
func (c *Channel) openKey() (*fernet.Key, *memguard.LockedBuffer, error) {
	buf, err := c.key.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("secret: open enclave: %w", err)
	}
	key, err := fernet.DecodeKey(string(buf.Bytes()))
	if err != nil {
		buf.Destroy()
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	return key, buf, nil
}
