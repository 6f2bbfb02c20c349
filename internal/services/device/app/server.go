// Package app hosts the device command relay HTTP process.
//
// The relay speaks plain HTTP/JSON so any LAN peer can drive the executor
// without shared schema tooling. Structural faults (bad JSON, unknown
// route) map to 4xx; semantic failures (unknown command, invalid args)
// ride a 200 with success=false in the envelope.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fourquadrant/focusbridge/internal/envelope"
	"github.com/fourquadrant/focusbridge/internal/platform/timeouts"
	"github.com/fourquadrant/focusbridge/internal/services/device/router"
	"golang.org/x/net/netutil"
)

const (
	// Version is advertised on the status route.
	Version = "1.0.0"

	maxCommandBodyBytes = 1 << 20

	corsMaxAgeSeconds = "86400"
)

// Config defines the inputs for the device relay transport boundary.
type Config struct {
	HTTPAddr          string
	MaxConns          int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the relay HTTP process over a command router.
type Server struct {
	httpAddr        string
	maxConns        int
	shutdownTimeout time.Duration
	httpServer      *http.Server
	router          *router.Router
	features        map[string]bool
	startedAt       time.Time
}

// NewServer builds a configured relay server over the given router.
func NewServer(config Config, commandRouter *router.Router, features map[string]bool) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if commandRouter == nil {
		return nil, errors.New("command router is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	server := &Server{
		httpAddr:        httpAddr,
		maxConns:        config.MaxConns,
		shutdownTimeout: config.ShutdownTimeout,
		router:          commandRouter,
		features:        features,
		startedAt:       time.Now(),
	}
	server.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           http.HandlerFunc(server.serveHTTP),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return server, nil
}

// Handler exposes the relay routing surface.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveHTTP)
}

// ListenAndServe runs the relay until the context ends. Accepted
// connections are capped at MaxConns and keep-alive is disabled so every
// exchange is one connection.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("relay server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	listener, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpAddr, err)
	}
	if s.maxConns > 0 {
		listener = netutil.LimitListener(listener, s.maxConns)
	}
	s.httpServer.SetKeepAlivesEnabled(false)

	serveErr := make(chan error, 1)
	log.Printf("device relay listening on %s", listener.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	writeCommonHeaders(w)

	// Preflight wins over routing: OPTIONS on any path is a bare 200.
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", corsMaxAgeSeconds)
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/command/execute":
		s.handleExecute(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/status":
		s.handleStatus(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/ping":
		s.writeEnvelope(w, http.StatusOK, envelope.CommandResponse{
			Success:   true,
			Message:   "pong",
			Timestamp: time.Now().Unix(),
		})
	case r.Method == http.MethodGet && r.URL.Path == "/up":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	default:
		log.Printf("device relay: unknown route %s %s", r.Method, r.URL.Path)
		s.writeFailure(w, http.StatusNotFound, "unknown route")
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBodyBytes))
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	request, err := envelope.DecodeRequest(body)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	response := s.router.Dispatch(request.Command, request.Args)
	s.writeEnvelope(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	port := 0
	if _, portText, err := net.SplitHostPort(s.httpAddr); err == nil {
		port, _ = strconv.Atoi(portText)
	}
	commands := s.router.Commands()
	sort.Strings(commands)
	s.writeEnvelope(w, http.StatusOK, envelope.CommandResponse{
		Success:   true,
		Message:   "Server is running",
		Timestamp: time.Now().Unix(),
		Data: map[string]any{
			"server_info": map[string]any{
				"port":    port,
				"version": Version,
				"uptime":  int(time.Since(s.startedAt).Seconds()),
			},
			"features": s.features,
			"commands": commands,
		},
	})
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, message string) {
	s.writeEnvelope(w, status, envelope.CommandResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().Unix(),
		Error:     message,
	})
}

func (s *Server) writeEnvelope(w http.ResponseWriter, status int, response envelope.CommandResponse) {
	payload, err := envelope.EncodeResponse(response)
	if err != nil {
		log.Printf("device relay: encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"internal server error"}`))
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		log.Printf("device relay: write response: %v", err)
	}
}

func writeCommonHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
}
