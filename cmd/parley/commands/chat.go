package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"parley/internal/client"
	"parley/internal/config"
	"parley/internal/secret"
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// printInterval is how often queued messages are drained to the terminal.
const printInterval = 200 * time.Millisecond

func chatCmd() *cobra.Command {
	var (
		addr     string
		username string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Connect to a relay and chat from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer memguard.Purge()

			secrets, err := loadSecrets()
			if err != nil {
				return err
			}
			if username == "" {
				username, err = promptLine("Username: ")
				if err != nil {
					return err
				}
			}

			sess, err := client.Dial(client.Config{
				Addr:         addr,
				Username:     username,
				ServerSecret: secrets.ServerSecret,
				RoomSecret:   secrets.RoomSecret,
			})
			if err != nil {
				return friendlyDialError(err)
			}
			defer sess.Close()

			fmt.Println(okStyle.Render("Connected, loading messages..."))

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-stop
				sess.Close()
			}()

			go printLoop(sess)

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if err := sess.Send(line); err != nil {
					break
				}
			}

			<-sess.Done()
			if err := sess.Err(); err != nil {
				return fmt.Errorf("connection lost: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3333", "server address")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	return cmd
}

// printLoop drains the session's delivery queue on a short interval and
// renders each entry, mirroring a chat transcript.
func printLoop(sess *client.Session) {
	ticker := time.NewTicker(printInterval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Done():
			return
		case <-ticker.C:
			for _, m := range sess.Drain() {
				fmt.Printf("\r%s %s %s\n%s",
					timeStyle.Render(m.Time),
					userStyle.Render(m.User+">>"),
					m.Message,
					promptStyle.Render(">> "))
			}
		}
	}
}

// loadSecrets reads the secrets file, falling back to hidden terminal
// prompts when no file exists.
func loadSecrets() (config.Secrets, error) {
	s, err := config.Load(configPath)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return config.Secrets{}, err
	}

	serverKey, err := promptSecret("Server secret: ")
	if err != nil {
		return config.Secrets{}, err
	}
	roomKey, err := promptSecret("Room secret: ")
	if err != nil {
		return config.Secrets{}, err
	}
	s = config.Secrets{ServerSecret: serverKey, RoomSecret: roomKey}
	if _, err := secret.NewChannel(s.ServerSecret); err != nil {
		return config.Secrets{}, err
	}
	if _, err := secret.NewChannel(s.RoomSecret); err != nil {
		return config.Secrets{}, err
	}
	return s, nil
}

func promptLine(label string) (string, error) {
	fmt.Print(promptStyle.Render(label))
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", fmt.Errorf("no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// promptSecret reads without echo so keys never land in the scrollback.
func promptSecret(label string) (string, error) {
	fmt.Print(promptStyle.Render(label))
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// friendlyDialError rewraps connect failures in terms a chat user acts on.
func friendlyDialError(err error) error {
	var reject *client.RejectError
	switch {
	case errors.As(err, &reject):
		return errors.New(errStyle.Render(reject.Error()))
	case errors.Is(err, client.ErrRefused):
		return errors.New(errStyle.Render("wrong address or the server is down"))
	case errors.Is(err, client.ErrAddress):
		return errors.New(errStyle.Render("invalid server address"))
	case errors.Is(err, client.ErrUnavailable):
		return errors.New(errStyle.Render("server unreachable"))
	case errors.Is(err, secret.ErrDecrypt):
		return errors.New(errStyle.Render("server secret is wrong"))
	case errors.Is(err, secret.ErrKeyFormat):
		return errors.New(errStyle.Render("malformed secret"))
	default:
		return err
	}
}
