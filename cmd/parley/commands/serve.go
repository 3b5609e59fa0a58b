package commands

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"parley/internal/config"
	"parley/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer memguard.Purge()

			secrets, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := log.New(os.Stderr, "parley: ", log.LstdFlags)
			srv, err := server.New(server.Config{
				Addr:         fmt.Sprintf("%s:%d", host, port),
				ServerSecret: secrets.ServerSecret,
				Logger:       logger,
			})
			if err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-stop
				logger.Printf("shutting down")
				srv.Shutdown()
			}()

			logger.Printf("listening on %s:%d", host, port)
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "address to bind")
	cmd.Flags().IntVar(&port, "port", 3333, "TCP port to listen on")
	return cmd
}
