package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/ledger"
	"github.com/hasad-erp/hasad/pkg/memory"
	"github.com/hasad-erp/hasad/pkg/server/middleware"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/taxonomy"
)

// Services are the domain services the endpoints call
type Services struct {
	Auth        *auth.Service
	Memory      *memory.Service
	Ledger      *ledger.Service
	Taxonomy    *taxonomy.Service
	HealthStore store.HealthStore

	// PasswordResetDelivery sends a reset token to its owner. When nil the
	// token is discarded.
	PasswordResetDelivery func(email, token string)
}

type Server struct {
	Services
	Config *config.HasadConfig
	Router *mux.Router
	Bearer *middleware.BearerAuthenticator
	srv    *http.Server
}

func NewServer(cfg *config.HasadConfig, services Services, host string, port string) *Server {
	router := mux.NewRouter()
	srv := &http.Server{
		Handler:      handlers.LoggingHandler(os.Stdout, router),
		Addr:         host + ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		Services: services,
		Config:   cfg,
		Router:   router,
		Bearer:   middleware.NewBearerAuthenticator(services.Auth, cfg),
		srv:      srv,
	}
}

// Addr is the address the server listens on
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start listens until Shutdown is called, then returns nil
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
