package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/fourquadrant/focusbridge/internal/platform/id"
	"github.com/fourquadrant/focusbridge/internal/platform/timeouts"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPTransport serves MCP JSON-RPC messages over HTTP POST requests.
// Each client holds a session, identified by the X-MCP-Session-ID header,
// whose message channels feed one long-running MCP server loop.
type HTTPTransport struct {
	addr       string
	server     *mcp.Server
	httpServer *http.Server

	sessionsMu sync.RWMutex
	sessions   map[string]*httpSession

	serverCtx    context.Context
	serverCancel context.CancelFunc
}

type httpSession struct {
	id        string
	conn      *httpConnection
	createdAt time.Time
	lastUsed  time.Time
	runOnce   sync.Once
}

// httpConnection implements mcp.Connection over paired channels.
type httpConnection struct {
	sessionID string
	reqChan   chan jsonrpc.Message
	respChan  chan jsonrpc.Message
	closed    chan struct{}
	closeOnce sync.Once
}

// NewHTTPTransportWithServer creates an HTTP transport bound to the given
// MCP server.
func NewHTTPTransportWithServer(addr string, server *mcp.Server) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8081"
	}
	return &HTTPTransport{
		addr:     addr,
		server:   server,
		sessions: make(map[string]*httpSession),
	}
}

// Start serves HTTP until the context ends.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.serverCtx, t.serverCancel = context.WithCancel(ctx)
	defer t.serverCancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/messages", t.handleMessages)
	mux.HandleFunc("/mcp/health", t.handleHealth)

	t.httpServer = &http.Server{
		Addr:              t.addr,
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	log.Printf("mcp http transport listening on %s", t.addr)
	go func() {
		serveErr <- t.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := t.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown mcp http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("serve mcp http: %w", err)
	}
}

// handleMessages handles POST /mcp/messages JSON-RPC exchanges.
func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, created, err := t.sessionFor(r.Header.Get("X-MCP-Session-ID"))
	if err != nil {
		http.Error(w, fmt.Sprintf("create session: %v", err), http.StatusInternalServerError)
		return
	}
	if created {
		w.Header().Set("X-MCP-Session-ID", session.id)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unable to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON-RPC message: %v", err), http.StatusBadRequest)
		return
	}

	t.sessionsMu.Lock()
	session.lastUsed = time.Now()
	t.sessionsMu.Unlock()

	t.ensureServerRunning(session)

	select {
	case session.conn.reqChan <- msg:
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	if request, ok := msg.(*jsonrpc.Request); ok && request.ID == (jsonrpc.ID{}) {
		// Notification: no response follows.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case response := <-session.conn.respChan:
		data, err := jsonrpc.EncodeMessage(response)
		if err != nil {
			log.Printf("mcp http transport: encode response: %v", err)
			http.Error(w, "unable to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("mcp http transport: write response: %v", err)
		}
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
	}
}

// handleHealth handles GET /mcp/health.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// sessionFor returns the session for the given id, creating one when the
// id is blank or unknown.
func (t *HTTPTransport) sessionFor(sessionID string) (*httpSession, bool, error) {
	if sessionID != "" {
		t.sessionsMu.RLock()
		session, ok := t.sessions[sessionID]
		t.sessionsMu.RUnlock()
		if ok {
			return session, false, nil
		}
	}

	newID, err := id.NewID()
	if err != nil {
		return nil, false, fmt.Errorf("generate session id: %w", err)
	}
	session := &httpSession{
		id: newID,
		conn: &httpConnection{
			sessionID: newID,
			reqChan:   make(chan jsonrpc.Message, 10),
			respChan:  make(chan jsonrpc.Message, 10),
			closed:    make(chan struct{}),
		},
		createdAt: time.Now(),
		lastUsed:  time.Now(),
	}

	t.sessionsMu.Lock()
	t.sessions[newID] = session
	t.sessionsMu.Unlock()
	return session, true, nil
}

// ensureServerRunning starts one MCP server loop per session.
func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}
	session.runOnce.Do(func() {
		transport := &sessionTransport{conn: session.conn}
		go func() {
			if err := t.server.Run(t.serverCtx, transport); err != nil && t.serverCtx.Err() == nil {
				log.Printf("mcp session %s ended: %v", session.id, err)
			}
		}()
	})
}

// sessionTransport hands a pre-existing connection to Server.Run.
type sessionTransport struct {
	conn mcp.Connection
}

// Connect implements mcp.Transport.
func (st *sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return st.conn, nil
}

// Read implements mcp.Connection.
func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg := <-c.reqChan:
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write implements mcp.Connection.
func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case c.respChan <- msg:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements mcp.Connection.
func (c *httpConnection) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// SessionID implements mcp.Connection.
func (c *httpConnection) SessionID() string {
	return c.sessionID
}
