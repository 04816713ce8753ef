package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hongminglow/chat-be/internal/auth"
	"github.com/hongminglow/chat-be/internal/chat"
	"github.com/hongminglow/chat-be/internal/config"
	"github.com/hongminglow/chat-be/internal/http/handlers"
	"github.com/hongminglow/chat-be/internal/middleware"
	"github.com/hongminglow/chat-be/internal/ratelimit"
	"github.com/hongminglow/chat-be/internal/realtime"
	"github.com/hongminglow/chat-be/internal/storage"
)

// Server wraps an http.Server with configured routes and the live hub.
type Server struct {
	inner *http.Server
	hub   *realtime.Hub
}

// New wires up the chat core, middleware and routes, and returns a ready server.
func New(cfg config.Config, store storage.Store, limiter ratelimit.Limiter) *Server {
	presence := chat.NewPresence()
	messages := chat.NewMessages(store, store)
	origins := middleware.NewOrigins(cfg.CORSOrigins)

	hub := realtime.NewHub(realtime.Options{
		Sessions:       chat.NewSessions(presence, store),
		Router:         chat.NewRouter(messages, presence),
		Typing:         chat.NewTyping(presence),
		Limiter:        limiter,
		CheckOrigin:    origins.CheckOrigin,
		MaxMessageSize: cfg.WSMaxMessageSize,
	})

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authn := func(next http.Handler) http.Handler {
		return middleware.Authenticate(tokenManager, next)
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), presence).Register(mux)
	handlers.NewAuthHandler(store, tokenManager).Register(mux, authn)
	handlers.NewMessageHandler(messages, limiter).Register(mux, authn)
	mux.Handle("GET /ws", hub)

	handler := middleware.CORS(cfg.CORSOrigins, middleware.RequestID(middleware.Logging(mux)))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer, hub: hub}
}

// Handler exposes the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins serving HTTP traffic. It returns nil after Shutdown.
func (s *Server) Start() error {
	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then closes live connections so every
// joined user is marked offline before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.inner.Shutdown(ctx)
	hubErr := s.hub.Shutdown(ctx)
	return errors.Join(httpErr, hubErr)
}
