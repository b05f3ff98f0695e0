package config

// Default returns the default daemon configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8575,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Chains: map[uint64]string{
			1: "https://ethereum-rpc.publicnode.com",
		},
		KDF: KDFConfig{
			Memory:      64 * 1024, // 64 MB
			Iterations:  3,
			Parallelism: 4,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
