package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/degenape/builderfee/internal/approval"
	"github.com/degenape/builderfee/internal/config"
	"github.com/degenape/builderfee/internal/provider"
	"github.com/degenape/builderfee/internal/session"
	"github.com/degenape/builderfee/internal/walletproc"
)

// runtime is everything a command needs to drive one session.
type runtime struct {
	cfg     *config.Config
	wallet  *provider.WSProvider
	ctrl    *session.Controller
	logFile *os.File
	stop    context.CancelFunc

	// hint explains why no wallet was reached; empty when one was.
	hint string
}

// loadConfig reads --config and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if providerURL != "" {
		cfg.Provider.URL = providerURL
	}
	if approvalMode != "" {
		cfg.Approval.Mode = approvalMode
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the root logger. "-" logs to stderr; anything else
// is a file opened for append so the TUI's alternate screen stays clean.
func setupLogging(cfg config.LogConfig) (*os.File, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		w    io.Writer = os.Stderr
		file *os.File
	)
	if cfg.File != "-" && cfg.File != "" {
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		w = file
	}

	switch cfg.Format {
	case "json":
		log.SetDefault(log.NewLogger(log.JSONHandlerWithLevel(w, level)))
	default:
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, file == nil)))
	}
	return file, nil
}

// newRuntime loads config, installs logging, dials the wallet and builds a
// controller. A wallet that cannot be reached is not an error: the session
// starts in the provider-unavailable state.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	f, err := setupLogging(cfg.Log)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logFile: f}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Provider.DialTimeout)
	wallet, err := provider.Dial(dialCtx, cfg.Provider.URL)
	cancel()
	if err != nil {
		rt.hint = diagnose(ctx)
		log.Warn("Wallet not reachable", "url", cfg.Provider.URL, "err", err, "hint", rt.hint)
	}

	var (
		p        provider.Provider
		approver session.Approver
	)
	if wallet != nil {
		rt.wallet = wallet
		p = wallet
		approver, err = approval.New(cfg.Approval, p)
		if err != nil {
			wallet.Close()
			return nil, err
		}
	}

	opts := session.DefaultOptions()
	opts.ReloadOnChainChange = cfg.Session.ReloadOnChainChange
	opts.PollInterval = cfg.Approval.ConfirmPollInterval
	opts.ConfirmTimeout = cfg.Approval.ConfirmTimeout
	rt.ctrl = session.New(p, approver, opts)

	watchCtx, stop := context.WithCancel(context.Background())
	rt.stop = stop
	if wallet != nil {
		go func() {
			select {
			case <-wallet.Done():
				rt.ctrl.Disconnected()
			case <-watchCtx.Done():
			}
		}()
	}

	log.Info("Session ready", "provider", cfg.Provider.URL, "mode", cfg.Approval.Mode, "wallet", wallet != nil)
	return rt, nil
}

func diagnose(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	found, err := walletproc.Discover(ctx)
	if err != nil {
		log.Debug("Wallet process scan failed", "err", err)
		return ""
	}
	for _, p := range found {
		log.Debug("Found wallet process", "pid", p.PID, "name", p.Name)
	}
	return walletproc.Hint(found)
}

// Close tears the session down in dependency order.
func (r *runtime) Close() {
	r.stop()
	r.ctrl.Close()
	if r.wallet != nil {
		r.wallet.Close()
	}
	if r.logFile != nil {
		r.logFile.Close()
	}
}
