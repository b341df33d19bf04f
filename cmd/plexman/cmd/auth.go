package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"plexman/client"
	"plexman/client/session"
	"plexman/internal/config"
	bboltstorage "plexman/storage/bbolt"
)

// withGateway opens the local session store, hydrates it, and hands a ready
// Gateway to fn. The session database lives next to the server's data by
// default but is a purely client-side artifact.
func withGateway(fn func(ctx context.Context, g *client.Gateway, store *session.Store) error) error {
	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(cfg.DataDir, "session.db"), nil)
	if err != nil {
		return fmt.Errorf("failed to open session storage: %w", err)
	}
	defer repo.Close()

	store := session.New(repo)
	if err := store.Hydrate(); err != nil {
		return err
	}
	g := client.New(cfg.APIBase, store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, g, store)
}

func prompt(label string) (string, error) {
	fmt.Printf("%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and persist a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(func(ctx context.Context, g *client.Gateway, store *session.Store) error {
			password, err := prompt("Password")
			if err != nil {
				return err
			}

			result, err := g.Login(ctx, args[0], password, "")
			if err != nil {
				return err
			}
			if result.MFARequired {
				code, err := prompt("Authentication code")
				if err != nil {
					return err
				}
				result, err = g.Login(ctx, args[0], password, code)
				if err != nil {
					return err
				}
			}
			if !result.Success {
				return errors.New("login did not complete")
			}
			fmt.Printf("Logged in as %s\n", store.Get().Username)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the local session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(func(ctx context.Context, g *client.Gateway, store *session.Store) error {
			if err := g.Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Verify the persisted session against the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(func(ctx context.Context, g *client.Gateway, store *session.Store) error {
			snapshot := g.Verify(ctx)
			if snapshot.IsAuthenticated() {
				fmt.Printf("Authenticated as %s\n", snapshot.Username)
			} else {
				fmt.Println("Not logged in")
			}
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account and enroll a second factor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(func(ctx context.Context, g *client.Gateway, store *session.Store) error {
			username := args[0]
			password, err := prompt("Password (min 8 characters)")
			if err != nil {
				return err
			}
			confirm, err := prompt("Confirm password")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			enrollment, err := g.Register(ctx, username, password)
			if err != nil {
				return err
			}
			fmt.Println("Account created. Add this secret to your authenticator app:")
			fmt.Printf("  %s\n", enrollment.TOTPSecret)

			code, err := prompt("Authentication code")
			if err != nil {
				return err
			}
			if err := g.VerifyTOTP(ctx, username, code); err != nil {
				return err
			}
			fmt.Println("Two-factor authentication enabled. Run 'plexman login' to sign in.")
			return nil
		})
	},
	Args: cobra.ExactArgs(1),
}

var requestResetCmd = &cobra.Command{
	Use:   "request-reset <username>",
	Short: "Request a password reset token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(func(ctx context.Context, g *client.Gateway, store *session.Store) error {
			issued, err := g.RequestReset(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(issued.Message)
			if issued.ResetToken != "" {
				// Development backends hand the token back directly.
				fmt.Printf("Reset token: %s\n", issued.ResetToken)
			}
			return nil
		})
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password using a reset token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withGateway(func(ctx context.Context, g *client.Gateway, store *session.Store) error {
			token, err := prompt("Reset token")
			if err != nil {
				return err
			}
			password, err := prompt("New password (min 8 characters)")
			if err != nil {
				return err
			}
			message, err := g.ConfirmReset(ctx, token, password)
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd, registerCmd, requestResetCmd, resetPasswordCmd)
}
