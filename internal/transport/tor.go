package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout is how long Tor may take to bootstrap.
const DefaultTorStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon through tornago so crawls can be
// routed over Tor without an external installation. Bootstrapping
// typically takes one to three minutes.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
	logger         *slog.Logger
}

// TorOption configures an EmbeddedTor.
type TorOption func(*EmbeddedTor)

// WithStartupTimeout sets the bootstrap timeout.
func WithStartupTimeout(timeout time.Duration) TorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// WithTorLogger sets the logger.
func WithTorLogger(logger *slog.Logger) TorOption {
	return func(e *EmbeddedTor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmbeddedTor creates a stopped daemon manager. Call Start to launch it.
func NewEmbeddedTor(opts ...TorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultTorStartupTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped, the startup timeout elapses or ctx is canceled. A daemon
// that finishes starting after cancellation is stopped.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	type started struct {
		process *tornago.TorProcess
		err     error
	}
	ch := make(chan started, 1)
	go func() {
		p, err := tornago.StartTorDaemon(launchCfg)
		ch <- started{process: p, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("failed to start embedded Tor daemon: %w", res.err)
		}
		e.process = res.process
		e.socksAddr = res.process.SocksAddr()
		e.logger.Info("embedded Tor daemon started", "socks_addr", e.socksAddr, "control_addr", res.process.ControlAddr())
		return nil
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.err == nil {
				_ = res.process.Stop() //nolint:errcheck // best effort cleanup
			}
		}()
		return ctx.Err()
	}
}

// Stop shuts the daemon down. It is safe to call on a stopped instance.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	return err
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when not running.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// IsRunning reports whether the daemon is running.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// NewClient creates a Client that dials through the daemon and verifies
// that its SOCKS port answers.
func (e *EmbeddedTor) NewClient(ctx context.Context, timeout time.Duration) (*Client, error) {
	if !e.IsRunning() {
		return nil, ErrTorNotRunning
	}
	client, err := NewClient(e.socksAddr, timeout)
	if err != nil {
		return nil, err
	}
	if status := client.CheckConnection(ctx); status != ProxyStatusOK {
		return nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}
	return client, nil
}
