// Package api serves the snippet REST backend over a snippet store.
//
// Routes:
//
//	GET    /health
//	GET    /api/snippets          newest first
//	POST   /api/snippets          201 with the stored snippet
//	GET    /api/snippets/{id}     404 if missing
//	PUT    /api/snippets/{id}     404 if missing
//	DELETE /api/snippets/{id}     404 if missing
//	GET    /api/namespaces        default first, then by name
//	POST   /api/namespaces        201 with the stored namespace
//	DELETE /api/namespaces/{id}   404 if missing, 400 for the default
//	POST   /api/wipe              drop and recreate all tables
//
// Errors are JSON objects of the form {"error": "message"}.
package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
)

// Store is the persistence the API needs. *sqlite.Store implements it.
type Store interface {
	ListSnippets(ctx context.Context) ([]snippets.Snippet, error)
	GetSnippet(ctx context.Context, id string) (*snippets.Snippet, error)
	CreateSnippet(ctx context.Context, sn *snippets.Snippet) error
	UpdateSnippet(ctx context.Context, id string, sn *snippets.Snippet) error
	DeleteSnippet(ctx context.Context, id string) error

	ListNamespaces(ctx context.Context) ([]snippets.Namespace, error)
	CreateNamespace(ctx context.Context, ns *snippets.Namespace) error
	DeleteNamespace(ctx context.Context, id string) error

	Wipe(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	// Host to bind (default: all interfaces).
	Host string

	// Port to listen on (default: 5000). Use 0 for a random port.
	Port int

	// AllowedOrigins is "*" or a comma-separated origin allowlist.
	AllowedOrigins string

	// Logger for request logging (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:           5000,
		AllowedOrigins: "*",
	}
}

// Server is the REST backend.
type Server struct {
	store    Store
	addr     string
	cors     corsPolicy
	logger   *log.Logger
	handler  http.Handler
	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

// NewServer creates a server over store. A nil config uses DefaultConfig.
func NewServer(store Store, config *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", config.Port)
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}

	s := &Server{
		store:  store,
		addr:   net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		cors:   newCORSPolicy(config.AllowedOrigins),
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/snippets", s.handleListSnippets)
	mux.HandleFunc("POST /api/snippets", s.handleCreateSnippet)
	mux.HandleFunc("GET /api/snippets/{id}", s.handleGetSnippet)
	mux.HandleFunc("PUT /api/snippets/{id}", s.handleUpdateSnippet)
	mux.HandleFunc("DELETE /api/snippets/{id}", s.handleDeleteSnippet)
	mux.HandleFunc("GET /api/namespaces", s.handleListNamespaces)
	mux.HandleFunc("POST /api/namespaces", s.handleCreateNamespace)
	mux.HandleFunc("DELETE /api/namespaces/{id}", s.handleDeleteNamespace)
	mux.HandleFunc("POST /api/wipe", s.handleWipe)

	s.handler = s.cors.wrap(s.logRequests(mux))
	return s, nil
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.logger.Printf("API server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down, waiting up to 5 seconds for
// in-flight requests.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	<-s.done

	s.logger.Println("API server stopped")
	return nil
}

// GetAddr returns the listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Printf("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
