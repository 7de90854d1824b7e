package server

import (
	"context"
	"net/http"
	"time"

	"github.com/yourusername/userbase/internal/auth"
	"github.com/yourusername/userbase/internal/config"
	"github.com/yourusername/userbase/internal/http/handlers"
	"github.com/yourusername/userbase/internal/middleware"
	"github.com/yourusername/userbase/internal/storage"
	"github.com/yourusername/userbase/internal/users"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.UserStore) *Server {
	mux := http.NewServeMux()
	health := handlers.NewHealthHandler(time.Now())
	health.Register(mux)

	tokens := auth.NewTokenManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	service := users.NewService(store, tokens)
	userHandler := handlers.NewUserHandler(service, &cfg)
	userHandler.Register(mux)

	handler := middleware.CORS(cfg.CORSOrigins, middleware.Logging(mux))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
