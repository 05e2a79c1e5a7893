package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"tasktracker/pkg/config"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(NewHttpServer),
	fx.Invoke(Run),
)

type Server struct {
	server   *http.Server
	tlsMutex sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
	watcher  *fsnotify.Watcher
}

type Params struct {
	fx.In
	Config         *config.Config
	Engine         *gin.Engine
	TracerProvider trace.TracerProvider `optional:"true"`
}

func NewHttpServer(p Params) (*Server, error) {
	cfg := p.Config

	var handler http.Handler = p.Engine
	if p.TracerProvider != nil && cfg.Otel.Addr != "" {
		handler = otelhttp.NewHandler(p.Engine, cfg.AppName, otelhttp.WithTracerProvider(p.TracerProvider))
	}

	srv := &Server{
		server: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		certPath: cfg.TLS.CertPath,
		keyPath:  cfg.TLS.KeyPath,
	}

	if cfg.TLS.Enable {
		if err := srv.reloadCert(); err != nil {
			return nil, err
		}

		srv.server.TLSConfig = &tls.Config{
			MinVersion:     tls.VersionTLS12,
			GetCertificate: srv.getCertificate,
		}
	}

	return srv, nil
}

func (s *Server) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.tlsMutex.RLock()
	defer s.tlsMutex.RUnlock()

	if s.cert == nil {
		return nil, fmt.Errorf("no TLS cert loaded")
	}

	return s.cert, nil
}

func (s *Server) reloadCert() error {
	cert, err := tls.LoadX509KeyPair(s.certPath, s.keyPath)
	if err != nil {
		return fmt.Errorf("load TLS key pair: %w", err)
	}
	s.tlsMutex.Lock()
	s.cert = &cert
	s.tlsMutex.Unlock()
	zap.L().Info("TLS certificate loaded", zap.String("cert_path", s.certPath))
	return nil
}

// watchTLSFiles reloads the key pair whenever either file changes, so renewed
// certificates are picked up without a restart.
func (s *Server) watchTLSFiles() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	for _, path := range []string{s.certPath, s.keyPath} {
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					if err := s.reloadCert(); err != nil {
						zap.L().Error("failed to reload TLS cert", zap.Error(err))
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zap.L().Error("watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

func Run(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.server.Addr, err)
			}

			if srv.server.TLSConfig != nil {
				if err := srv.watchTLSFiles(); err != nil {
					_ = ln.Close()
					return err
				}
				zap.L().Info("Starting HTTPS server", zap.String("addr", ln.Addr().String()))
				go serve(func() error { return srv.server.ServeTLS(ln, "", "") })
			} else {
				zap.L().Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
				go serve(func() error { return srv.server.Serve(ln) })
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Shutting down HTTP server gracefully...")
			if srv.watcher != nil {
				_ = srv.watcher.Close()
			}
			return srv.server.Shutdown(ctx)
		},
	})
}

func serve(fn func() error) {
	if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.L().Error("HTTP server failed", zap.Error(err))
	}
}
