// Package config handles application configuration.
//
// Everything here is operator-settable at runtime. Key material formats and
// derivation paths are fixed in the keystore and are not configuration.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Config holds daemon runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// RPC server
	RPC RPCConfig

	// Chain RPC endpoints, chain id to URL.
	Chains map[uint64]string

	// Key derivation hardness for PIN encryption.
	KDF KDFConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// KDFConfig holds Argon2id parameters for PIN-based key encryption.
// Lowering these weakens every stored key; the validator enforces floors.
type KDFConfig struct {
	Memory      uint32 `conf:"kdf.memory"` // KiB
	Iterations  uint32 `conf:"kdf.iterations"`
	Parallelism uint8  `conf:"kdf.parallelism"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.wallet3
//	macOS:   ~/Library/Application Support/Wallet3
//	Windows: %APPDATA%\Wallet3
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wallet3"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Wallet3")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Wallet3")
		}
		return filepath.Join(home, "AppData", "Roaming", "Wallet3")
	default:
		return filepath.Join(home, ".wallet3")
	}
}

// KeystoreDir returns the encrypted key database directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.DataDir, "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "wallet3.conf")
}
