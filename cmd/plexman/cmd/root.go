package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "plexman",
	Short: "Plexman is the auth service for the media server admin console",
	Long: `Plexman runs the authentication backend for the media server admin
console and provides client commands to manage the local session:
register an account, log in with a TOTP second factor, and reset passwords.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
