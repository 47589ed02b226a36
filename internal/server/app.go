// Package server wires configuration, secrets, the crypto engine, the
// ticket store and the HTTP router into a runnable process.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/harrylevesque/qrticket/internal/api"
	"github.com/harrylevesque/qrticket/internal/certs"
	"github.com/harrylevesque/qrticket/internal/config"
	"github.com/harrylevesque/qrticket/internal/crypto"
	"github.com/harrylevesque/qrticket/internal/logging"
	"github.com/harrylevesque/qrticket/internal/qr"
	"github.com/harrylevesque/qrticket/internal/secrets"
	"github.com/harrylevesque/qrticket/internal/store"
	"github.com/harrylevesque/qrticket/internal/ticket"
)

const certExpiryWarning = 14 * 24 * time.Hour

type App struct {
	config  *config.Config
	logger  *logging.SlogLogger
	store   store.Store
	handler http.Handler
	tls     *tls.Config
}

// NewApp builds every collaborator from c. Secrets are read once here and
// only the derived engine outlives this call.
func NewApp(ctx context.Context, c *config.Config, src secrets.Source) (*App, error) {
	logger, err := logging.New(c.LogFile, c.LogLevel)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(c, src)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	sink, err := qr.NewPNGSink(c.QRDir, "/tickets", c.QRSize)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	var tlsCfg *tls.Config
	if c.TLSCertFile != "" {
		pair, err := certs.Load(c.TLSCertFile, c.TLSKeyFile, time.Now())
		if err != nil {
			_ = logger.Close()
			return nil, err
		}
		if certs.ExpiresSoon(pair.Leaf, time.Now(), certExpiryWarning) {
			logger.Warn(ctx, "tls certificate expires soon", "not_after", pair.Leaf.NotAfter)
		}
		tlsCfg = certs.ServerConfig(pair)
	}

	st, err := store.Open(ctx, c.StoreBackend, c.StorePath)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("store init error: %w", err)
	}

	citizenID := regexp.MustCompile(c.CitizenIDPattern)
	iss := ticket.NewIssuer(engine, sink,
		ticket.WithCitizenIDPattern(citizenID),
		ticket.WithLogger(logger.With("component", "issuer")))
	ver := ticket.NewVerifier(engine,
		ticket.WithValidityWindow(c.ValidityWindow),
		ticket.WithLogger(logger.With("component", "verifier")))

	h := api.NewHandler(iss, ver, st, sink, logger.With("component", "api"))
	return &App{config: c, logger: logger, store: st, handler: api.NewRouter(h), tls: tlsCfg}, nil
}

func newEngine(c *config.Config, src secrets.Source) (*crypto.Engine, error) {
	m, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	alg, err := crypto.ParseAlgorithm(c.AEAD)
	if err != nil {
		return nil, err
	}
	return crypto.NewEngine(m.MasterKey, m.ServerSecret, alg)
}

func (app *App) Handler() http.Handler { return app.handler }

// Run serves HTTP until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then drains in-flight requests for up to ShutdownTimeout.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              app.config.ListenAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         app.tls,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "server listening", "addr", app.config.ListenAddr,
			"tls", app.tls != nil, "store", app.config.StoreBackend, "aead", app.config.AEAD)
		if app.tls != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (app *App) Close() error {
	return errors.Join(app.store.Close(), app.logger.Close())
}
