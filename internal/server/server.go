// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-kms/internal/config"
	"github.com/jeremyhahn/go-kms/internal/session"
	"github.com/jeremyhahn/go-kms/pkg/adapters/logger"
	"github.com/jeremyhahn/go-kms/pkg/chainstate"
	"github.com/jeremyhahn/go-kms/pkg/correlation"
	"github.com/jeremyhahn/go-kms/pkg/health"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
	"github.com/jeremyhahn/go-kms/pkg/metrics"
	"github.com/jeremyhahn/go-kms/pkg/ratelimit"
	"github.com/jeremyhahn/go-kms/pkg/rpc"
	"github.com/jeremyhahn/go-kms/pkg/signing"
	"github.com/jeremyhahn/go-kms/pkg/storage"
	"github.com/jeremyhahn/go-kms/pkg/storage/file"
	"github.com/jeremyhahn/go-kms/pkg/storage/memory"
)

const (
	// DefaultDialTimeout bounds a single connection attempt to a validator.
	DefaultDialTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds Shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	resourceInterval = 30 * time.Second
)

// Dialer opens connections to validators. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Server supervises one signing session per configured validator.
type Server struct {
	config    *config.Config
	log       logger.Logger
	dialer    Dialer
	store     storage.Backend
	states    *chainstate.Registry
	providers *signing.Registry
	limiter   *ratelimit.Limiter

	// Health checker
	healthChecker *health.Checker

	// Metrics
	metricsCollector *metrics.ResourceCollector
	httpServer       *httpServer

	mu        sync.RWMutex
	connected map[string]bool

	// Lifecycle
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
	shutdownCh chan struct{}
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces the logger built from the logging section.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(s *Server) { s.dialer = d }
}

// WithStorage replaces the storage backend named in the storage section.
// The server takes ownership and closes it on shutdown.
func WithStorage(b storage.Backend) Option {
	return func(s *Server) { s.store = b }
}

// New builds a server from a validated configuration. It loads every
// chain's state, runs the configured state hooks, and opens the signing
// providers. All failures are ConfigError except a fail-closed hook, which
// is HookError.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, kmserror.New(kmserror.ConfigError, "configuration is required")
	}

	s := &Server{
		config:     cfg,
		dialer:     &net.Dialer{Timeout: DefaultDialTimeout},
		states:     chainstate.NewRegistry(),
		providers:  signing.NewRegistry(),
		connected:  make(map[string]bool),
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
		if err != nil {
			return nil, kmserror.Wrap(kmserror.ConfigError, err)
		}
		s.log = log
	}

	s.logMessageTypes()

	if err := s.initializeStorage(); err != nil {
		return nil, err
	}
	if err := s.initializeChains(ctx); err != nil {
		s.closeResources()
		return nil, err
	}
	if err := s.initializeProviders(ctx); err != nil {
		s.closeResources()
		return nil, err
	}
	s.initializeHealth()

	s.limiter = ratelimit.New(&ratelimit.Config{
		Enabled:           true,
		AttemptsPerMinute: cfg.Reconnect.AttemptsPerMinute,
		Burst:             cfg.Reconnect.Burst,
	})

	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// logMessageTypes records the wire prefix of every remote signer message so
// frames can be matched against a packet capture.
func (s *Server) logMessageTypes() {
	for _, name := range rpc.Registry.Names() {
		prefix, err := rpc.Registry.Prefix(name)
		if err != nil {
			continue
		}
		s.log.Debug("Registered message type",
			logger.String("name", name),
			logger.String("prefix", prefix.String()))
	}
}

func (s *Server) initializeStorage() error {
	if s.store != nil {
		return nil
	}
	switch s.config.Storage.Backend {
	case config.StorageMemory:
		s.log.Warn("Chain state is kept in memory and will not survive a restart")
		s.store = memory.New()
	default:
		fs, err := file.New(s.config.Storage.Path)
		if err != nil {
			return kmserror.Wrapf(kmserror.ConfigError, err, "opening state directory %s", s.config.Storage.Path)
		}
		s.store = fs
	}
	return nil
}

// initializeChains loads the persisted state of every chain and applies its
// state hook.
func (s *Server) initializeChains(ctx context.Context) error {
	for _, chain := range s.config.Chains {
		state, err := chainstate.Load(chain.ID, s.store)
		if err != nil {
			return kmserror.Wrapf(kmserror.ConfigError, err, "loading state for %s", chain.ID)
		}

		log := s.log.With(logger.Chain(chain.ID))
		if hc := chain.StateHook; hc != nil {
			hook := &chainstate.Hook{Cmd: hc.Cmd, Timeout: hc.Timeout, FailClosed: hc.FailClosed}
			advanced, err := hook.Apply(ctx, state)
			var hookErr *chainstate.HookError
			switch {
			case err == nil && advanced:
				log.Info("Chain state advanced by state hook", logger.Int64("height", state.Current().Height))
			case errors.As(err, &hookErr) && !hook.FailClosed:
				log.Warn("State hook failed, continuing with persisted state", logger.Error(err))
			case err != nil:
				return classify(err, kmserror.HookError)
			}
		}

		log.Info("Loaded chain state", logger.String("last_signed", state.Current().String()))
		s.states.Add(state)
	}
	return nil
}

// initializeProviders opens every configured signing provider and binds it
// to its chains.
func (s *Server) initializeProviders(ctx context.Context) error {
	p := s.config.Providers
	for _, sc := range p.Softsign {
		provider, err := signing.NewSoftProvider(sc.SoftsignConfig)
		if err := s.register("softsign", provider, err, sc.ChainIDs); err != nil {
			return err
		}
	}
	for _, pc := range p.PKCS11 {
		provider, err := signing.NewPKCS11Provider(pc.PKCS11Config)
		if err := s.register("pkcs11", provider, err, pc.ChainIDs); err != nil {
			return err
		}
	}
	for _, vc := range p.Vault {
		provider, err := signing.NewVaultProvider(ctx, vc.VaultConfig)
		if err := s.register("vault", provider, err, vc.ChainIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) register(kind string, provider *signing.SignerProvider, openErr error, chainIDs []string) error {
	if openErr != nil {
		return kmserror.Wrapf(kmserror.ConfigError, openErr, "opening %s provider", kind)
	}
	if err := s.providers.Register(provider, chainIDs...); err != nil {
		_ = provider.Close()
		return kmserror.Wrap(kmserror.ConfigError, err)
	}
	s.log.Info("Signing provider ready",
		logger.String("provider", kind),
		logger.Strings("chain_ids", chainIDs),
		logger.String("public_key", fmt.Sprintf("%X", provider.PublicKey())))
	return nil
}

// initializeHealth registers a readiness check per validator connection.
func (s *Server) initializeHealth() {
	s.healthChecker = health.NewChecker()
	for _, v := range s.config.Validator {
		addr := v.Addr
		s.healthChecker.RegisterCheck("validator-"+addr, health.ConnectedCheck(addr, func() bool {
			return s.IsConnected(addr)
		}))
	}
}

// getBuildVersion retrieves the version from build information
func getBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	for _, setting := range info.Settings {
		if setting.Key == "vcs.version" && setting.Value != "" && setting.Value != "devel" {
			return setting.Value
		}
		if setting.Key == "vcs.revision" {
			if len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
			return setting.Value
		}
	}

	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Start runs a session loop for every validator and blocks until they all
// end, ctx is cancelled, or Shutdown is called. The first fatal error stops
// every other session and is returned; a clean stop returns nil.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Starting KMS",
		logger.String("version", getBuildVersion()),
		logger.Int("validators", len(s.config.Validator)))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if s.config.Metrics.Enabled {
		metrics.Enable()
		if err := s.startHTTP(); err != nil {
			return err
		}
		collector := metrics.StartResourceCollector(ctx, resourceInterval, metrics.HeightSampler(s.lastSignedHeights))
		s.mu.Lock()
		s.metricsCollector = collector
		s.mu.Unlock()
	} else {
		metrics.Disable()
	}

	var (
		fatalOnce sync.Once
		fatal     error
	)
	for _, v := range s.config.Validator {
		s.wg.Add(1)
		go func(v config.ValidatorConfig) {
			defer s.wg.Done()
			if err := s.runValidator(ctx, v); err != nil {
				fatalOnce.Do(func() {
					fatal = err
					cancel()
				})
			}
		}(v)
	}

	s.healthChecker.MarkStarted()
	s.wg.Wait()
	s.healthChecker.MarkNotStarted()

	if fatal != nil {
		s.log.Error("KMS stopped on fatal error", logger.Error(fatal))
	}
	return fatal
}

// runValidator connects to one validator until a fatal error, ctx
// cancellation, or a session ends with reconnect disabled. Only fatal errors
// are returned.
func (s *Server) runValidator(ctx context.Context, v config.ValidatorConfig) error {
	log := s.log.With(logger.Chain(v.ChainID), logger.Validator(v.Addr))
	for {
		err := s.connect(ctx, v, log)
		if ctx.Err() != nil {
			return nil
		}

		kerr := classify(err, kmserror.IoError)
		if kerr.Kind.IsFatal() {
			return kerr
		}
		if !v.Reconnect {
			log.Warn("Validator session ended", logger.Error(kerr))
			return nil
		}

		log.Warn("Validator session ended, reconnecting", logger.Error(kerr))
		if err := s.limiter.Wait(ctx, v.Addr); err != nil {
			return nil
		}
		metrics.RecordReconnect(v.Addr)
	}
}

// connect dials v and runs a session over the connection.
func (s *Server) connect(ctx context.Context, v config.ValidatorConfig, log logger.Logger) error {
	network, address, err := v.Dial()
	if err != nil {
		return kmserror.Wrap(kmserror.ConfigError, err)
	}
	provider, err := s.providers.Get(v.ChainID)
	if err != nil {
		return kmserror.Wrap(kmserror.ConfigError, err)
	}
	state, err := s.states.Get(v.ChainID)
	if err != nil {
		return kmserror.Wrap(kmserror.ConfigError, err)
	}

	conn, err := s.dialer.DialContext(ctx, network, address)
	if err != nil {
		return kmserror.Wrapf(kmserror.IoError, err, "dialing %s", v.Addr)
	}

	ctx, id := correlation.NewConnection(ctx)
	log = log.With(logger.String("correlation_id", id))

	sess, err := session.New(session.Config{
		ChainID:     v.ChainID,
		Validator:   v.Addr,
		MaxHeight:   v.MaxHeight,
		ReadTimeout: v.ReadTimeout,
	}, conn, provider, state, log)
	if err != nil {
		_ = conn.Close()
		return err
	}

	s.setConnected(v.Addr, true)
	defer s.setConnected(v.Addr, false)
	log.Info("Connected to validator")
	return sess.Run(ctx)
}

// lastSignedHeights returns the persisted height of every configured chain.
func (s *Server) lastSignedHeights() map[string]int64 {
	heights := make(map[string]int64, len(s.config.Chains))
	for _, chain := range s.config.Chains {
		if state, err := s.states.Get(chain.ID); err == nil {
			heights[chain.ID] = state.Current().Height
		}
	}
	return heights
}

func classify(err error, fallback kmserror.Kind) *kmserror.Error {
	if kerr, ok := kmserror.From(err); ok {
		return kerr
	}
	return kmserror.Wrap(fallback, err)
}

func (s *Server) setConnected(addr string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected[addr] = connected
}

// IsConnected reports whether a session with the validator at addr is
// running.
func (s *Server) IsConnected(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected[addr]
}

// HealthChecker returns the server's health checker.
func (s *Server) HealthChecker() *health.Checker {
	return s.healthChecker
}

// Shutdown stops every session and the metrics endpoint and releases the
// providers and storage. It is safe to call more than once.
func (s *Server) Shutdown() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.log.Info("Shutting down KMS...")
		s.cancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()

		s.mu.RLock()
		hs, collector := s.httpServer, s.metricsCollector
		s.mu.RUnlock()
		if hs != nil {
			if err := hs.stop(shutdownCtx); err != nil {
				s.log.Error("Error shutting down metrics server", logger.Error(err))
			}
		}
		if collector != nil {
			collector.Stop()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			s.log.Warn("Shutdown timeout exceeded, forcing stop")
		}

		errs = s.closeResources()
		close(s.shutdownCh)
		s.log.Info("KMS shutdown complete")
	})
	return errors.Join(errs...)
}

func (s *Server) closeResources() []error {
	var errs []error
	if err := s.providers.Close(); err != nil {
		s.log.Error("Error closing signing providers", logger.Error(err))
		errs = append(errs, err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.Error("Error closing storage", logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errs
}

// WaitForShutdown blocks until Shutdown completes.
func (s *Server) WaitForShutdown() {
	<-s.shutdownCh
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		cancel()
	}()

	return ctx
}
