// Package server mounts the REST API and MCP transports on one HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/cotiza/internal/adapters/server/common"
	"github.com/hylla/cotiza/internal/adapters/server/httpapi"
	"github.com/hylla/cotiza/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress  = "127.0.0.1:8080"
	defaultAPIEndpoint  = "/api/v1"
	defaultMCPEndpoint  = "/mcp"
	shutdownGrace       = 5 * time.Second
	readHeaderTimeout   = 10 * time.Second
	readinessCheckLimit = 2 * time.Second
)

// Config defines serve-mode endpoint configuration.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
	// DefaultTenant serves requests that name no tenant_id.
	DefaultTenant string
}

// withDefaults trims every field and fills the blanks.
func (c Config) withDefaults() (Config, error) {
	c.HTTPBind = strings.TrimSpace(c.HTTPBind)
	if c.HTTPBind == "" {
		c.HTTPBind = defaultBindAddress
	}
	c.APIEndpoint = cleanEndpoint(c.APIEndpoint, defaultAPIEndpoint)
	c.MCPEndpoint = cleanEndpoint(c.MCPEndpoint, defaultMCPEndpoint)
	if c.APIEndpoint == c.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ, both are %q", c.APIEndpoint)
	}
	c.ServerName = firstNonEmpty(c.ServerName, "cotiza")
	c.ServerVersion = firstNonEmpty(c.ServerVersion, "dev")
	c.DefaultTenant = strings.TrimSpace(c.DefaultTenant)
	return c, nil
}

// Dependencies holds what the transports call into. Ready and Logger are
// optional; when Ready fails /readyz answers 503.
type Dependencies struct {
	Service common.Service
	Ready   func(context.Context) error
	Logger  *charmLog.Logger
}

// NewHandler builds the root mux and returns the config it settled on.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, Config{}, err
	}
	if deps.Service == nil {
		return nil, Config{}, errors.New("service dependency is required")
	}

	mcpHandler, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
		DefaultTenant: cfg.DefaultTenant,
	}, deps.Service, deps.Service)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.Service, cfg.DefaultTenant))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, "ok")
	})
	mux.HandleFunc("/readyz", readinessHandler(deps.Ready))
	mux.Handle(cfg.MCPEndpoint, mcpHandler)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)
	return logRequests(deps.Logger, mux), cfg, nil
}

// Run listens on cfg.HTTPBind and serves until ctx ends.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	ln, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	if deps.Logger != nil {
		deps.Logger.Info("http listener ready", "addr", ln.Addr().String(), "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
	}
	return Serve(ctx, ln, handler)
}

// Serve runs handler on ln and shuts down gracefully once ctx ends.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	if ctx == nil {
		ctx = context.Background()
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve after shutdown: %w", err)
	}
	if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) {
		return fmt.Errorf("shutdown server: %w", shutdownErr)
	}
	return nil
}

func readinessHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready == nil {
			writeProbe(w, http.StatusOK, "ok")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), readinessCheckLimit)
		defer cancel()
		if err := ready(ctx); err != nil {
			writeProbe(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeProbe(w, http.StatusOK, "ok")
	}
}

func writeProbe(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, "{\"status\":%q}\n", status)
}

// statusRecorder captures the response code for request logs.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps streamed MCP responses flowing through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(logger *charmLog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.code, "took", time.Since(start))
	})
}

func cleanEndpoint(path, fallback string) string {
	path = "/" + strings.Trim(strings.TrimSpace(path), "/")
	if path == "/" {
		return fallback
	}
	return path
}

func firstNonEmpty(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
