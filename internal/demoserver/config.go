package demoserver

import "github.com/raysh454/a11yscan/internal/logging"

// Config holds configuration for the demo server.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// InitialVersion is the starting version for all pages (default: 1).
	InitialVersion int

	Logger logging.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           9999,
		InitialVersion: 1,
	}
}
