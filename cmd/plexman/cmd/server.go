package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"plexman/api"
	"plexman/internal/config"
	"plexman/internal/util"
	bboltstorage "plexman/storage/bbolt"
)

var (
	serverPort    int
	serverDataDir string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		dataDir := serverDataDir
		if dataDir == "" {
			dataDir = cfg.DataDir
		}
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		secret := cfg.JWTSecret
		if secret == "" {
			if cfg.Production {
				return errors.New("PLEXMAN_JWT_SECRET is required in production")
			}
			// Development fallback: sessions do not survive restarts.
			generated, err := util.RandomURLToken(32)
			if err != nil {
				return err
			}
			secret = generated
			fmt.Println("PLEXMAN_JWT_SECRET not set; using an ephemeral signing secret")
		}

		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dataDir, "plexman.db"), nil)
		if err != nil {
			return fmt.Errorf("failed to open account storage: %w", err)
		}
		defer repo.Close()

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		a := api.New(repo, secret,
			api.WithLogger(logger),
			api.WithDevMode(!cfg.Production),
		)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/api", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", serverPort),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("Starting auth server on port %d (data: %s)...\n", serverPort, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 5001, "Port to listen on")
	serverCmd.Flags().StringVar(&serverDataDir, "data-dir", "", "Directory for persistent data (default from PLEXMAN_DATA_DIR)")
}
