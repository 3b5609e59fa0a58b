package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

func Execute() error {
	root := &cobra.Command{
		Use:           "parley",
		Short:         "Encrypted multi-user chat relay",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.json", "secrets file")

	root.AddCommand(keygenCmd(), serveCmd(), chatCmd())
	return root.Execute()
}
