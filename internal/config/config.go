// Package config loads bookledger settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

// DefaultPath is read when no --config flag is given and the file exists.
const DefaultPath = "bookledger.yaml"

// Wallet kinds
const (
	WalletKeystore = "keystore"
	WalletRemote   = "remote"
	WalletNone     = "none"
)

// Config is the complete bookledger configuration
type Config struct {
	Wallet   WalletConfig   `yaml:"wallet"`
	Contract ContractConfig `yaml:"contract"`
	Network  wallet.Network `yaml:"network"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Suggest  SuggestConfig  `yaml:"suggest"`

	// SettleDelay is the wait after a wallet network switch.
	SettleDelay    time.Duration `yaml:"-"`
	SettleDelayRaw string        `yaml:"settle_delay"`
}

// WalletConfig selects and configures the account that signs transactions
type WalletConfig struct {
	Kind       string `yaml:"kind"`
	Keystore   string `yaml:"keystore"`
	Passphrase string `yaml:"passphrase"`
	Account    string `yaml:"account"`
	RemoteURL  string `yaml:"remote_url"`

	PollInterval    time.Duration `yaml:"-"`
	PollIntervalRaw string        `yaml:"poll_interval"`
}

// ContractConfig locates the library contract
type ContractConfig struct {
	Address string `yaml:"address"`
	// ABIFile replaces the embedded ABI when set.
	ABIFile string `yaml:"abi_file"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SessionIdle closes browser sessions with no open page for this long.
	SessionIdle    time.Duration `yaml:"-"`
	SessionIdleRaw string        `yaml:"session_idle"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SuggestConfig picks the LLM used to fill in book metadata
type SuggestConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Network: wallet.Sepolia(),
		Server:  ServerConfig{Addr: ":8888", SessionIdle: 10 * time.Minute},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Wallet: WalletConfig{
			PollInterval: 2 * time.Second,
		},
		SettleDelay: time.Second,
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded, then the
// BOOKLEDGER_* variables override the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	return finish(cfg)
}

// LoadOptional behaves like Load but falls back to defaults when path does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No config file, using defaults", "path", path)
		return finish(Default())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	if cfg.Wallet.Kind == "" {
		cfg.Wallet.Kind = detectWalletKind(cfg.Wallet)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Contract.Address, "BOOKLEDGER_CONTRACT")
	set(&cfg.Wallet.Kind, "BOOKLEDGER_WALLET")
	set(&cfg.Wallet.Keystore, "BOOKLEDGER_KEYSTORE")
	set(&cfg.Wallet.Passphrase, "BOOKLEDGER_PASSPHRASE")
	set(&cfg.Wallet.RemoteURL, "BOOKLEDGER_REMOTE_URL")
	set(&cfg.Suggest.Provider, "SUGGEST_PROVIDER")
	set(&cfg.Logging.Level, "LOG_LEVEL")
}

func detectWalletKind(w WalletConfig) string {
	switch {
	case w.RemoteURL != "":
		return WalletRemote
	case w.Keystore != "":
		return WalletKeystore
	default:
		return WalletNone
	}
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.SettleDelayRaw != "" {
		cfg.SettleDelay, err = time.ParseDuration(cfg.SettleDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing settle_delay %q: %w", cfg.SettleDelayRaw, err)
		}
	}

	if cfg.Wallet.PollIntervalRaw != "" {
		cfg.Wallet.PollInterval, err = time.ParseDuration(cfg.Wallet.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing wallet.poll_interval %q: %w", cfg.Wallet.PollIntervalRaw, err)
		}
	}

	if cfg.Server.SessionIdleRaw != "" {
		cfg.Server.SessionIdle, err = time.ParseDuration(cfg.Server.SessionIdleRaw)
		if err != nil {
			return fmt.Errorf("parsing server.session_idle %q: %w", cfg.Server.SessionIdleRaw, err)
		}
	}

	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// An unset contract address is allowed; the session reports it when used.
func (c *Config) Validate() error {
	switch c.Wallet.Kind {
	case WalletKeystore:
		if c.Wallet.Keystore == "" {
			return fmt.Errorf("wallet.keystore is required for the keystore wallet")
		}
	case WalletRemote:
		if c.Wallet.RemoteURL == "" {
			return fmt.Errorf("wallet.remote_url is required for the remote wallet")
		}
	case WalletNone:
	default:
		return fmt.Errorf("wallet.kind %q is not one of keystore, remote, none", c.Wallet.Kind)
	}

	if c.Network.ChainID == 0 {
		return fmt.Errorf("network.chain_id is required")
	}
	if c.Network.Name == "" {
		return fmt.Errorf("network.name is required")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if c.Server.SessionIdle <= 0 {
		return fmt.Errorf("server.session_idle must be positive")
	}
	if c.Wallet.PollInterval < 0 {
		return fmt.Errorf("wallet.poll_interval must not be negative")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}

	return nil
}

// ParseLevel maps a level name to its slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level %q is not debug, info, warn or error", s)
}
