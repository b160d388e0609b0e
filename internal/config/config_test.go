package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookledger.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_LEDGER_PASS", "correct horse")

	path := writeConfig(t, `
wallet:
  kind: keystore
  keystore: /var/lib/bookledger/keys
  passphrase: ${TEST_LEDGER_PASS}
  poll_interval: 500ms
contract:
  address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
server:
  addr: ":9000"
  session_idle: 30m
settle_delay: 3s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Wallet.Passphrase != "correct horse" {
		t.Errorf("Expected expanded passphrase, got %q", cfg.Wallet.Passphrase)
	}
	if cfg.Wallet.PollInterval != 500*time.Millisecond {
		t.Errorf("Expected poll interval 500ms, got %v", cfg.Wallet.PollInterval)
	}
	if cfg.SettleDelay != 3*time.Second {
		t.Errorf("Expected settle delay 3s, got %v", cfg.SettleDelay)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Expected addr :9000, got %s", cfg.Server.Addr)
	}
	if cfg.Server.SessionIdle != 30*time.Minute {
		t.Errorf("Expected session idle 30m, got %v", cfg.Server.SessionIdle)
	}
	if cfg.Network.ChainID != 11155111 {
		t.Errorf("Expected Sepolia by default, got %d", cfg.Network.ChainID)
	}
}

func TestLoadOptionalDefaults(t *testing.T) {
	for _, key := range []string{"BOOKLEDGER_CONTRACT", "BOOKLEDGER_WALLET", "BOOKLEDGER_KEYSTORE", "BOOKLEDGER_PASSPHRASE", "BOOKLEDGER_REMOTE_URL", "SUGGEST_PROVIDER", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Wallet.Kind != WalletNone {
		t.Errorf("Expected wallet kind none, got %s", cfg.Wallet.Kind)
	}
	if cfg.SettleDelay != time.Second {
		t.Errorf("Expected 1s settle delay, got %v", cfg.SettleDelay)
	}
	if cfg.Wallet.PollInterval != 2*time.Second {
		t.Errorf("Expected 2s poll interval, got %v", cfg.Wallet.PollInterval)
	}
	if cfg.Server.Addr != ":8888" {
		t.Errorf("Expected :8888, got %s", cfg.Server.Addr)
	}
	if cfg.Server.SessionIdle != 10*time.Minute {
		t.Errorf("Expected 10m session idle, got %v", cfg.Server.SessionIdle)
	}
	if cfg.Network.HexChainID() != "0xaa36a7" {
		t.Errorf("Expected 0xaa36a7, got %s", cfg.Network.HexChainID())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOOKLEDGER_CONTRACT", "0x00000000000000000000000000000000000000c0")
	t.Setenv("BOOKLEDGER_REMOTE_URL", "http://127.0.0.1:8545")
	t.Setenv("BOOKLEDGER_WALLET", "")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, `
contract:
  address: YOUR_CONTRACT_ADDRESS_HERE
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Contract.Address != "0x00000000000000000000000000000000000000c0" {
		t.Errorf("Expected env contract address, got %s", cfg.Contract.Address)
	}
	if cfg.Wallet.Kind != WalletRemote {
		t.Errorf("Expected remote wallet detected from url, got %s", cfg.Wallet.Kind)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("BOOKLEDGER_WALLET", "")
	t.Setenv("BOOKLEDGER_KEYSTORE", "")
	t.Setenv("BOOKLEDGER_REMOTE_URL", "")
	t.Setenv("LOG_LEVEL", "")

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad duration", content: "settle_delay: soon\n", want: "settle_delay"},
		{name: "bad yaml", content: "wallet: [\n", want: "parsing config file"},
		{name: "keystore without dir", content: "wallet:\n  kind: keystore\n", want: "wallet.keystore"},
		{name: "remote without url", content: "wallet:\n  kind: remote\n", want: "wallet.remote_url"},
		{name: "unknown wallet", content: "wallet:\n  kind: metamask\n", want: "wallet.kind"},
		{name: "no chain id", content: "network:\n  chain_id: 0\n", want: "network.chain_id"},
		{name: "bad level", content: "logging:\n  level: loud\n", want: "logging.level"},
		{name: "bad format", content: "logging:\n  format: xml\n", want: "logging.format"},
		{name: "zero session idle", content: "server:\n  session_idle: 0s\n", want: "server.session_idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"", "info", "DEBUG", "warn", "error"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("Expected %q to parse, got %v", s, err)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("Expected error for trace")
	}
}
