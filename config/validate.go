package config

import (
	"fmt"
	"net/url"
)

// KDF floors. Anything below these makes brute-forcing a 6-digit PIN cheap.
const (
	minKDFMemory     = 8 * 1024 // KiB
	minKDFIterations = 1
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	if cfg.KDF.Memory < minKDFMemory {
		return fmt.Errorf("kdf.memory must be at least %d KiB", minKDFMemory)
	}
	if cfg.KDF.Iterations < minKDFIterations {
		return fmt.Errorf("kdf.iterations must be at least %d", minKDFIterations)
	}
	if cfg.KDF.Parallelism == 0 {
		return fmt.Errorf("kdf.parallelism must be at least 1")
	}

	for chainID, endpoint := range cfg.Chains {
		if chainID == 0 {
			return fmt.Errorf("chain id 0 is not valid")
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("chain.%d endpoint %q: %w", chainID, endpoint, err)
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return fmt.Errorf("chain.%d endpoint %q: scheme must be http(s) or ws(s)", chainID, endpoint)
		}
	}

	return nil
}
