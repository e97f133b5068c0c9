package scan

import (
	"log/slog"
	"net/http"
)

// Server handles HTTP requests for scans
type Server struct {
	service *Service
	auth    AuthConfig
	mux     *http.ServeMux
}

// AuthConfig configures basic-auth identity. The basic-auth username is the
// caller's user id (the scan owner); Password, when set, must match on every
// request. An empty password accepts any caller that presents a username.
type AuthConfig struct {
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, auth AuthConfig) *Server {
	return NewServerWithMux(service, auth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, auth AuthConfig, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		auth:    auth,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// identity extracts the caller's user id from basic auth credentials.
func (s *Server) identity(r *http.Request) (string, bool) {
	user, pass, ok := r.BasicAuth()
	if !ok || user == "" {
		return "", false
	}
	if s.auth.Password != "" && pass != s.auth.Password {
		return "", false
	}
	return user, true
}

// withIdentity wraps a handler that requires an authenticated caller.
func (s *Server) withIdentity(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.identity(r)
		if !ok {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="labelcheck"`)
			writeError(w, ErrUnauthenticated)
			return
		}
		next(w, r, userID)
	}
}

// corsMiddleware adds CORS headers and answers preflight requests, so the
// mobile client can call the API cross-origin.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/scans/{id}/retry", s.withIdentity(s.handleRetryScan))
	s.mux.HandleFunc("GET /api/scans/{id}/events", s.withIdentity(s.handleScanEvents))
	s.mux.HandleFunc("GET /api/scans/{id}", s.withIdentity(s.handleGetScan))
	s.mux.HandleFunc("GET /api/scans", s.withIdentity(s.handleListScans))
	s.mux.HandleFunc("POST /api/scans", s.withIdentity(s.handleStartScan))
	s.mux.HandleFunc("POST /api/analyze", s.withIdentity(s.handleAnalyze))
	s.mux.HandleFunc("GET /files/", s.withIdentity(s.handleGetFile))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
