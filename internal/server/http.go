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
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-kms/pkg/adapters/logger"
	"github.com/jeremyhahn/go-kms/pkg/correlation"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
	"github.com/jeremyhahn/go-kms/pkg/metrics"
)

// httpServer serves metrics and health probes.
type httpServer struct {
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// Router returns the handler for the metrics and health endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(correlation.Middleware)
	r.Use(metrics.HTTPMiddleware)

	// Kubernetes-style health probes
	r.Get("/health/live", s.healthChecker.LiveHandler)
	r.Get("/health/ready", s.healthChecker.ReadyHandler)

	r.Handle(s.config.Metrics.Path, promhttp.Handler())
	return r
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Error("Panic recovered",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.Error(kmserror.FromPanic(v)))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// startHTTP binds the metrics listener and serves it in the background.
func (s *Server) startHTTP() error {
	cfg := s.config.Metrics

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return kmserror.Wrapf(kmserror.ConfigError, err, "listening on %s", cfg.Listen)
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}
	if cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.LoadTLSConfig()
		if err != nil {
			_ = ln.Close()
			return kmserror.Wrap(kmserror.ConfigError, err)
		}
		srv.TLSConfig = tlsConfig
	}

	hs := &httpServer{server: srv, listener: ln, done: make(chan struct{})}
	s.mu.Lock()
	s.httpServer = hs
	s.mu.Unlock()

	s.log.Info("Starting metrics server",
		logger.String("address", ln.Addr().String()),
		logger.String("path", cfg.Path),
		logger.Bool("tls", cfg.TLS.Enabled))

	go func() {
		defer close(hs.done)
		var err error
		if srv.TLSConfig != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server error", logger.Error(err))
		}
	}()
	return nil
}

func (hs *httpServer) stop(ctx context.Context) error {
	err := hs.server.Shutdown(ctx)
	<-hs.done
	return err
}

// MetricsAddr returns the bound address of the metrics endpoint, or an
// empty string when it is not running.
func (s *Server) MetricsAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.listener.Addr().String()
}
