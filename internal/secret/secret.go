package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"
)

// Alphabet the passphrase sampler draws from. Kept deliberately wide:
// letters, digits and a band of symbols including non-ASCII.
const passphraseAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"1234567890ß´^°!\"§$%&/()=?`+*#.:,;µ@€<>|"

const (
	saltSize   = 16
	iterations = 100_000
	keySize    = 32
)

// Generate mints fresh symmetric key material: a random passphrase of the
// requested length, stretched with PBKDF2-SHA256 under a fresh salt and
// encoded URL-safe base64 so the result is directly usable as a channel key.
// The salt is never retained; this is a key generator, not a re-derivable
// password hash, and every call yields a different key.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("secret: passphrase length must be positive, got %d", length)
	}
	pass, err := passphrase(length)
	if err != nil {
		return "", err
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("secret: read salt: %w", err)
	}
	key := pbkdf2.Key(pass, salt, iterations, keySize, sha256.New)
	return base64.URLEncoding.EncodeToString(key), nil
}

// passphrase samples length runes without replacement from the alphabet,
// repeated as many times as needed to cover length.
func passphrase(length int) ([]byte, error) {
	block := []rune(passphraseAlphabet)
	pool := make([]rune, 0, ((length/len(block))+1)*len(block))
	for len(pool) < length {
		pool = append(pool, block...)
	}

	out := make([]rune, length)
	for i := range out {
		j, err := randIndex(len(pool))
		if err != nil {
			return nil, err
		}
		out[i] = pool[j]
		pool[j] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return []byte(string(out)), nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("secret: read random index: %w", err)
	}
	return int(v.Int64()), nil
}
