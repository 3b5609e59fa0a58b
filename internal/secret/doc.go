// Package secret covers the protocol's key material: generating shared and
// session keys, and the keyed channels built on them.
//
// Contents
//
//   - Generate: passphrase sampling + PBKDF2-SHA256 stretching, producing
//     URL-safe base64 key strings. Used offline to mint the server and room
//     secrets and online to mint a session key per accepted connection.
//   - Channel: fernet-based authenticated encryption bound to one key, with
//     an optional issuance-age window. Keys live in memguard enclaves while
//     at rest in the process.
//
// Decrypt failures (ErrDecrypt) are distinguishable from malformed key
// material (ErrKeyFormat) and from parse errors in the layer above, because
// callers treat them differently: fatal at handshake, connection-scoped
// afterwards.
package secret
