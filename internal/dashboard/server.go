// Package dashboard provides a real-time WebSocket server for write-back
// monitoring.
//
// The dashboard broadcasts flush lifecycle events and coordinator statistics
// to connected WebSocket clients, so a UI can show whether the workspace is
// in sync with its backend.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of dashboard message
type MessageType string

const (
	MessageTypeFlushStarted    MessageType = "flush_started"
	MessageTypeFlushRetrying   MessageType = "flush_retrying"
	MessageTypeFlushSucceeded  MessageType = "flush_succeeded"
	MessageTypeFlushFailed     MessageType = "flush_failed"
	MessageTypeFlushSuperseded MessageType = "flush_superseded"

	// MessageTypeStats carries a StatsData snapshot. It is also the welcome
	// message every client receives first.
	MessageTypeStats MessageType = "stats"
)

// Message is the JSON envelope written to clients.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// clientQueue bounds the messages buffered per client. A client that falls
// this far behind is disconnected.
const clientQueue = 64

// client is one WebSocket connection with its own outgoing queue, so a slow
// reader never delays the others.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close(code, reason)
	})
}

// Server fans dashboard messages out to WebSocket clients.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	mu      sync.RWMutex
	clients map[*client]struct{}
	welcome func() (Message, bool)

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	Host   string // empty binds all interfaces
	Port   int    // 0 picks a free port
	Logger *log.Logger
}

// DefaultConfig listens on :8080.
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
	}
}

// NewServer creates a dashboard server. Nothing listens until Start.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:    net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	if s.listener != nil {
		return errors.New("dashboard server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop disconnects every client and shuts the HTTP server down. Calling it
// again, or on a server that never started, is a no-op.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		clients := s.clients
		s.clients = make(map[*client]struct{})
		s.mu.Unlock()
		for c := range clients {
			c.close(websocket.StatusGoingAway, "server shutting down")
		}

		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := s.server.Shutdown(ctx); serr != nil {
				err = fmt.Errorf("server shutdown error: %w", serr)
			}
		}

		s.wg.Wait()
		s.logger.Println("Dashboard server stopped")
	})
	return err
}

// Broadcast queues msg for every connected client and returns immediately.
// Clients whose queue is full are disconnected.
func (s *Server) Broadcast(msg Message) {
	if s.ctx.Err() != nil {
		return
	}
	data, err := encode(msg)
	if err != nil {
		s.logger.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	var slow []*client
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		s.logger.Println("Client fell behind, disconnecting")
		s.removeClient(c, websocket.StatusPolicyViolation, "too slow")
	}
}

// SetWelcome registers fn to build the message sent to each new client.
// fn returns false to fall back to an empty stats message.
func (s *Server) SetWelcome(fn func() (Message, bool)) {
	s.mu.Lock()
	s.welcome = fn
	s.mu.Unlock()
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return json.Marshal(msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, clientQueue),
		closed: make(chan struct{}),
	}

	s.mu.RLock()
	fn := s.welcome
	s.mu.RUnlock()

	// Queued before registration, so it is always the first message read.
	welcome := Message{Type: MessageTypeStats}
	if fn != nil {
		if msg, ok := fn(); ok {
			welcome = msg
		}
	}
	if data, err := encode(welcome); err == nil {
		c.send <- data
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		c.close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.wg.Add(2)
	s.mu.Unlock()

	s.logger.Printf("Client connected (total: %d)", count)

	go s.writeLoop(c)
	go s.readLoop(c)
}

func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()

	for {
		select {
		case <-c.closed:
			return
		case <-s.ctx.Done():
			return
		case data := <-c.send:
			ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Printf("Failed to send to client: %v", err)
				s.removeClient(c, websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// readLoop discards client messages and notices disconnects.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.removeClient(c, websocket.StatusNormalClosure, "")

	for {
		if _, _, err := c.conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(c *client, code websocket.StatusCode, reason string) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	count := len(s.clients)
	s.mu.Unlock()

	c.close(code, reason)
	if ok {
		s.logger.Printf("Client disconnected (total: %d)", count)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "snipsync dashboard\n\nwebsocket: ws://%s/ws\nhealth:    http://%s/health\n", r.Host, r.Host)
}

// GetAddr returns the listening address, or the configured one before Start.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
