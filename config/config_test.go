package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileParsesConfValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet3.conf")
	content := `# comment
rpc.port = 9000
rpc.allowed = 127.0.0.1, 10.0.0.5
chain.1 = https://ethereum-rpc.publicnode.com
chain.137 = "https://polygon-bor-rpc.publicnode.com"
log.level = debug
kdf.memory = 32768
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	cfg := Default()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.RPC.Port != 9000 {
		t.Errorf("rpc.port = %d", cfg.RPC.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.5" {
		t.Errorf("rpc.allowed = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.Chains[137] != "https://polygon-bor-rpc.publicnode.com" {
		t.Errorf("chain.137 = %q", cfg.Chains[137])
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q", cfg.Log.Level)
	}
	if cfg.KDF.Memory != 32768 {
		t.Errorf("kdf.memory = %d", cfg.KDF.Memory)
	}
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("expected no values, got %v", values)
	}
}

func TestApplyFlagsChains(t *testing.T) {
	cfg := Default()
	f := &Flags{Chains: "10=https://optimism-rpc.publicnode.com, 42161=https://arbitrum-one-rpc.publicnode.com"}

	if err := ApplyFlags(cfg, f); err != nil {
		t.Fatalf("ApplyFlags: %v", err)
	}
	if cfg.Chains[10] != "https://optimism-rpc.publicnode.com" {
		t.Errorf("chain 10 = %q", cfg.Chains[10])
	}
	if cfg.Chains[42161] != "https://arbitrum-one-rpc.publicnode.com" {
		t.Errorf("chain 42161 = %q", cfg.Chains[42161])
	}
	// Defaults survive.
	if cfg.Chains[1] == "" {
		t.Error("default mainnet endpoint lost")
	}
}

func TestApplyFlagsBadChains(t *testing.T) {
	for _, chains := range []string{"notapair", "x=https://example.com"} {
		cfg := Default()
		if err := ApplyFlags(cfg, &Flags{Chains: chains}); err == nil {
			t.Errorf("ApplyFlags(%q): expected error", chains)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty datadir", func(c *Config) { c.DataDir = "" }, true},
		{"bad rpc port", func(c *Config) { c.RPC.Port = 70000 }, true},
		{"weak kdf memory", func(c *Config) { c.KDF.Memory = 1024 }, true},
		{"zero kdf iterations", func(c *Config) { c.KDF.Iterations = 0 }, true},
		{"zero kdf parallelism", func(c *Config) { c.KDF.Parallelism = 0 }, true},
		{"chain id zero", func(c *Config) { c.Chains[0] = "https://example.com" }, true},
		{"bad endpoint scheme", func(c *Config) { c.Chains[1] = "ftp://example.com" }, true},
		{"ws endpoint", func(c *Config) { c.Chains[1] = "wss://example.com" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate: err = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}
