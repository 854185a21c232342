package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/evervoid/pkg/api/handlers"
	"github.com/cbodonnell/evervoid/pkg/api/middleware"
	authhandlers "github.com/cbodonnell/evervoid/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/evervoid/pkg/auth/providers"
	"github.com/cbodonnell/evervoid/pkg/log"
	"github.com/cbodonnell/evervoid/pkg/repositories"
	"github.com/cbodonnell/evervoid/pkg/state"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider authproviders.AuthProvider
	// AuthHandler is optional; the /auth routes are only served with one.
	AuthHandler   authhandlers.AuthHandler
	SnapshotStore state.SnapshotStore
	// Repository is optional; the /games routes are only served with one.
	Repository repositories.Repository
}

// NewRouter builds the API routes.
func NewRouter(opts NewAPIServerOptions) *mux.Router {
	authProvider := opts.AuthProvider
	if authProvider == nil {
		authProvider = authproviders.NewNoopAuthProvider()
	}

	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.HandleFunc("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet)
	r.HandleFunc("/info", handlers.HandleInfo(opts.SnapshotStore)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/state", handlers.HandleState(opts.SnapshotStore)).Methods(http.MethodGet, http.MethodOptions)

	if opts.AuthHandler != nil {
		r.HandleFunc("/auth/login", opts.AuthHandler.HandleLogin()).Methods(http.MethodPost, http.MethodOptions)
		r.HandleFunc("/auth/refresh", opts.AuthHandler.HandleRefresh()).Methods(http.MethodPost, http.MethodOptions)
	}

	if opts.Repository != nil {
		games := r.PathPrefix("/games").Subrouter()
		games.Use(middleware.NewAuthMiddleware(authProvider))
		games.HandleFunc("", handlers.HandleListGames(opts.Repository)).Methods(http.MethodGet)
		games.HandleFunc("/{gameID}", handlers.HandleGetGame(opts.Repository)).Methods(http.MethodGet)
	}
	return r
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
