// Package app hosts the chat relay HTTP/WebSocket process.
//
// Clients hold one live connection each and exchange typed JSON frames.
// Control traffic (ping) is answered inline on the read loop; chat
// messages run through the Processor off the loop so a slow reply never
// blocks heartbeats. One chat message per connection may be in flight at
// a time; a second one is rejected with an error frame rather than
// queued.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fourquadrant/focusbridge/internal/platform/timeouts"
	"golang.org/x/net/websocket"
)

const (
	serverName = "focusbridge-chat"

	maxFramePayloadBytes   = 16 * 1024
	maxDecodeErrorsPerConn = 3

	defaultMaxConnections    = 64
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatTimeout  = 90 * time.Second
)

// Frame types on the wire.
const (
	frameChat         = "chat"
	framePing         = "ping"
	framePong         = "pong"
	frameSystem       = "system"
	frameError        = "error"
	frameProcessing   = "processing"
	frameChatResponse = "chat_response"
)

// Processor turns one chat message into one reply.
type Processor interface {
	Process(ctx context.Context, message string) (string, error)
}

// Config defines the inputs for the chat transport boundary.
type Config struct {
	HTTPAddr          string
	MaxConnections    int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	Processor         Processor
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr          string
	shutdownTimeout   time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	httpServer        *http.Server
	manager           *connManager
	processor         Processor
}

type wsInFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsOutFrame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type chatPayload struct {
	Message string `json:"message"`
}

// wsPeer serializes frame writes to one connection.
type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn}
}

func (p *wsPeer) writeFrame(frame wsOutFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.JSON.Send(p.conn, frame)
}

// NewServer builds a configured chat server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if config.MaxConnections <= 0 {
		config.MaxConnections = defaultMaxConnections
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = defaultHeartbeatInterval
	}
	if config.HeartbeatTimeout <= 0 {
		config.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	server := &Server{
		httpAddr:          httpAddr,
		shutdownTimeout:   config.ShutdownTimeout,
		heartbeatInterval: config.HeartbeatInterval,
		heartbeatTimeout:  config.HeartbeatTimeout,
		manager:           newConnManager(config.MaxConnections),
		processor:         config.Processor,
	}
	server.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           server.handler(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return server, nil
}

// Run creates and serves a chat server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server and the heartbeat sweeper until the
// context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go s.runSweeper(sweepCtx)

	serveErr := make(chan error, 1)
	log.Printf("chat server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
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

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		s.handleWSConn(conn)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

func (s *Server) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, clientID := range s.manager.sweep(s.heartbeatTimeout) {
				log.Printf("chat: dropped idle connection client=%s", clientID)
			}
		}
	}
}

func (s *Server) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	conn.MaxPayloadBytes = maxFramePayloadBytes
	peer := newWSPeer(conn)
	client, err := s.manager.register(peer, conn.Close)
	if err != nil {
		_ = peer.writeFrame(errorFrame(err.Error()))
		return
	}
	defer s.manager.remove(client.id)

	_ = peer.writeFrame(wsOutFrame{
		Type: frameSystem,
		Data: map[string]any{
			"message":   "connected",
			"client_id": client.id,
			"server":    serverName,
		},
	})

	decodeErrors := 0

	for {
		var frame wsInFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = peer.writeFrame(errorFrame("invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0
		s.manager.touch(client.id)

		switch frame.Type {
		case framePing:
			// Answered inline so heartbeats never queue behind chat work.
			_ = peer.writeFrame(wsOutFrame{
				Type: framePong,
				Data: map[string]any{"timestamp": time.Now().Unix()},
			})
		case frameChat:
			s.handleChatFrame(conn, client, peer, frame)
		default:
			_ = peer.writeFrame(errorFrame(fmt.Sprintf("unsupported frame type: %s", frame.Type)))
		}
	}
}

func (s *Server) handleChatFrame(conn *websocket.Conn, client *connClient, peer *wsPeer, frame wsInFrame) {
	var payload chatPayload
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			_ = peer.writeFrame(errorFrame("invalid chat payload"))
			return
		}
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		_ = peer.writeFrame(errorFrame("chat message is required"))
		return
	}

	if !s.manager.beginProcessing(client.id) {
		_ = peer.writeFrame(errorFrame("a chat message is already being processed"))
		return
	}

	_ = peer.writeFrame(wsOutFrame{
		Type: frameProcessing,
		Data: map[string]any{"message": "processing"},
	})

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}
	go func() {
		defer s.manager.endProcessing(client.id)

		reply, err := s.processor.Process(ctx, message)
		if err != nil {
			log.Printf("chat: process message client=%s err=%v", client.id, err)
			_ = peer.writeFrame(errorFrame(err.Error()))
			return
		}
		_ = peer.writeFrame(wsOutFrame{
			Type: frameChatResponse,
			Data: map[string]any{"message": reply},
		})
	}()
}

func errorFrame(message string) wsOutFrame {
	return wsOutFrame{
		Type: frameError,
		Data: map[string]any{"message": message},
	}
}
