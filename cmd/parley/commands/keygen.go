package commands

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"parley/internal/config"
	"parley/internal/secret"
)

// keygen mints shared secrets. Bare, it prints one key; with --init it
// writes a fresh secrets file holding a server and a room secret.
func keygenCmd() *cobra.Command {
	var (
		length   int
		initFile bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Mint a fresh shared secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if initFile {
				serverKey, err := secret.Generate(pickLength(length))
				if err != nil {
					return err
				}
				roomKey, err := secret.Generate(pickLength(length))
				if err != nil {
					return err
				}
				s := config.Secrets{ServerSecret: serverKey, RoomSecret: roomKey}
				if err := config.Save(configPath, s); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", configPath)
				return nil
			}

			key, err := secret.Generate(pickLength(length))
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 0, "passphrase length (default: random 10-256)")
	cmd.Flags().BoolVar(&initFile, "init", false, "write a secrets file with a server and a room secret")
	return cmd
}

// pickLength returns n, or a random length in [10, 256] when unset.
func pickLength(n int) int {
	if n > 0 {
		return n
	}
	v, err := rand.Int(rand.Reader, big.NewInt(247))
	if err != nil {
		return 256
	}
	return int(v.Int64()) + 10
}
