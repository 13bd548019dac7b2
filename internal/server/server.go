// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wifidog-auth/internal/common/config"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/observability"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/wifidog/protocol"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProtocolHandler answers raw wifidog requests.
type ProtocolHandler interface {
	Handle(ctx context.Context, kind string, params map[string]string) protocol.Response
}

// Authenticator is the user directory consulted by the portal login form.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

// Sessions creates sessions and reports how many are active.
type Sessions interface {
	CreateSession(ctx context.Context, userID, mac, ip, gatewayID string) (string, error)
	ActiveSessionCount(ctx context.Context) (int64, error)
}

// Pinger checks the storage backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	StorageTimeout  time.Duration
	FailURL         string
}

func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		StorageTimeout:  2 * time.Second,
		FailURL:         "http://localhost:8080/portal/login?error=1",
	}
}

// ConfigFrom maps the server, session and portal sections of the application config.
func ConfigFrom(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg.Server.Address != "" {
		c.Address = cfg.Server.Address
	}
	if cfg.Server.ReadTimeout > 0 {
		c.ReadTimeout = config.GetDuration(cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout > 0 {
		c.WriteTimeout = config.GetDuration(cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout > 0 {
		c.ShutdownTimeout = config.GetDuration(cfg.Server.ShutdownTimeout)
	}
	if cfg.Session.StorageTimeout > 0 {
		c.StorageTimeout = cfg.Session.StorageTimeoutDuration()
	}
	if cfg.Portal.FailURL != "" {
		c.FailURL = cfg.Portal.FailURL
	}
	return c
}

// Server is the HTTP entry point for gateways, the portal form and probes.
type Server struct {
	config   *Config
	protocol ProtocolHandler
	users    Authenticator
	sessions Sessions
	storage  Pinger
	obs      *observability.Observability
	clock    clock.Clock
	logger   logger.Logger
	http     *http.Server
}

func New(
	config *Config,
	protocol ProtocolHandler,
	users Authenticator,
	sessions Sessions,
	storage Pinger,
	obs *observability.Observability,
	clk clock.Clock,
	log logger.Logger,
) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if obs == nil {
		obs = &observability.Observability{}
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Server{
		config:   config,
		protocol: protocol,
		users:    users,
		sessions: sessions,
		storage:  storage,
		obs:      obs,
		clock:    clk,
		logger:   log.WithFields(map[string]interface{}{"component": "http"}),
	}
	s.http = &http.Server{
		Addr:         config.Address,
		Handler:      s.Router(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.obs.Middleware)

	// Query style: /wifidog?type=auth&token=...
	r.Get("/wifidog", s.handleTyped)
	r.Get("/wifidog/", s.handleTyped)

	// Path style used by gateway firmware: /wifidog/auth/?token=... or /auth/?token=...
	for _, kind := range []protocol.Kind{protocol.KindPing, protocol.KindAuth, protocol.KindLogin, protocol.KindPortal} {
		h := s.handleKind(kind)
		for _, prefix := range []string{"", "/wifidog"} {
			r.Get(prefix+"/"+string(kind), h)
			r.Get(prefix+"/"+string(kind)+"/", h)
		}
	}

	r.Post("/portal/login", s.portalLogin)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.config.Address})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
