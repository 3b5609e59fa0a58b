// Package config reads and writes the secrets file shared out of band by the
// server operator and the chat participants.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"parley/internal/secret"
)

// Secrets is the on-disk secrets file. The server only ever needs
// server_secret; clients need both.
type Secrets struct {
	ServerSecret string `json:"server_secret"`
	RoomSecret   string `json:"room_secret"`
}

// Load reads and validates the secrets file. Malformed key material fails
// here, before anything touches the network.
func Load(path string) (Secrets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Secrets{}, err
	}
	var s Secrets
	if err := json.Unmarshal(b, &s); err != nil {
		return Secrets{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if _, err := secret.NewChannel(s.ServerSecret); err != nil {
		return Secrets{}, fmt.Errorf("config: server_secret: %w", err)
	}
	if s.RoomSecret != "" {
		if _, err := secret.NewChannel(s.RoomSecret); err != nil {
			return Secrets{}, fmt.Errorf("config: room_secret: %w", err)
		}
	}
	return s, nil
}

// Save writes the secrets file with owner-only permissions via a temp file
// then rename.
func Save(path string, s Secrets) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, b, 0o600)
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
