// Package config loads runtime configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Defaults used when the corresponding environment variable is unset.
const (
	DefaultAPIBase = "http://localhost:5001/api"
	DefaultDataDir = "./data"
)

// Config holds runtime settings shared by the server and the CLI client.
type Config struct {
	// APIBase is the base URL of the auth REST API, including the /api prefix.
	APIBase string
	// JWTSecret signs session tokens. Required for the server.
	JWTSecret string
	// DataDir holds persistent state (server account store, client session).
	DataDir string
	// Production disables development-only behavior such as returning
	// password reset tokens in API responses.
	Production bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIBase:    getenv("PLEXMAN_API_BASE", DefaultAPIBase),
		JWTSecret:  os.Getenv("PLEXMAN_JWT_SECRET"),
		DataDir:    getenv("PLEXMAN_DATA_DIR", DefaultDataDir),
		Production: os.Getenv("PLEXMAN_ENV") == "production",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
