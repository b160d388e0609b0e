package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/lehigh-university-libraries/bookledger/internal/config"
	"github.com/lehigh-university-libraries/bookledger/internal/ledger"
	"github.com/lehigh-university-libraries/bookledger/internal/session"
	"github.com/lehigh-university-libraries/bookledger/internal/suggest"
	"github.com/lehigh-university-libraries/bookledger/internal/wallet"
)

// app holds what every command shares: the loaded config and the open wallet.
type app struct {
	cfg     *config.Config
	logFile *os.File

	provider    wallet.Provider
	closeWallet func()
	dial        ledger.Dialer
}

var current = &app{}

// setup loads the configuration and installs the default logger
func (a *app) setup(configPath string, verbose bool, logPath string, quiet bool) error {
	var err error
	if configPath == "" {
		a.cfg, err = config.LoadOptional(config.DefaultPath)
	} else {
		a.cfg, err = config.Load(configPath)
	}
	if err != nil {
		return err
	}

	level, err := config.ParseLevel(a.cfg.Logging.Level)
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	switch {
	case logPath != "":
		a.logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		out = a.logFile
	case quiet:
		out = io.Discard
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if strings.EqualFold(a.cfg.Logging.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// openWallet connects the configured wallet once. The provider stays nil for
// the "none" kind, so sessions report that no wallet is available.
func (a *app) openWallet(ctx context.Context) error {
	if a.dial != nil {
		return nil
	}

	var dial ledger.Dialer = ledger.Dial
	if path := a.cfg.Contract.ABIFile; path != "" {
		parsed, err := loadABI(path)
		if err != nil {
			return err
		}
		dial = ledger.DialWithABI(parsed)
	}

	w := a.cfg.Wallet
	switch w.Kind {
	case config.WalletKeystore:
		ks, err := wallet.NewKeystore(wallet.KeystoreOptions{
			Dir:        w.Keystore,
			Passphrase: w.Passphrase,
			Account:    w.Account,
			Networks:   []wallet.Network{a.cfg.Network},
		})
		if err != nil {
			return fmt.Errorf("opening keystore: %w", err)
		}
		a.provider, a.closeWallet = ks, ks.Close
		slog.Debug("Opened keystore wallet", "dir", w.Keystore)
	case config.WalletRemote:
		remote, err := wallet.DialRemote(ctx, w.RemoteURL, w.PollInterval)
		if err != nil {
			return fmt.Errorf("connecting to wallet: %w", err)
		}
		a.provider, a.closeWallet = remote, remote.Close
		slog.Debug("Connected to remote wallet", "url", w.RemoteURL)
	default:
		slog.Warn("No wallet configured; set BOOKLEDGER_KEYSTORE or BOOKLEDGER_REMOTE_URL")
	}

	a.dial = dial
	return nil
}

func loadABI(path string) (abi.ABI, error) {
	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("opening ABI file: %w", err)
	}
	defer f.Close()
	return ledger.ParseABI(f)
}

// newController returns a session bound to the shared wallet. openWallet must have succeeded.
func (a *app) newController() *session.Controller {
	return session.New(a.provider, session.Options{
		Network:         a.cfg.Network,
		ContractAddress: a.cfg.Contract.Address,
		SettleDelay:     a.cfg.SettleDelay,
		Dial:            a.dial,
	})
}

// connectedController opens the wallet and connects a session, for one-shot commands.
func (a *app) connectedController(ctx context.Context) (*session.Controller, error) {
	if err := a.openWallet(ctx); err != nil {
		return nil, err
	}
	ctrl := a.newController()
	if err := ctrl.Connect(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	return ctrl, nil
}

// suggester returns the configured suggestion service, or nil when the
// provider is "none" or cannot be built.
func (a *app) suggester() *suggest.Service {
	if strings.EqualFold(a.cfg.Suggest.Provider, "none") {
		return nil
	}
	s, err := suggest.New(a.cfg.Suggest.Provider, a.cfg.Suggest.Model)
	if err != nil {
		slog.Warn("Suggestions disabled", "err", err)
		return nil
	}
	return s
}

func (a *app) close() {
	if a.closeWallet != nil {
		a.closeWallet()
		a.closeWallet = nil
	}
	a.provider = nil
	a.dial = nil
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}
