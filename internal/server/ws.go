package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Server is the WebSocket front end: it upgrades connections and hands
// them to the session manager's games.
type Server struct {
	addr       string
	upgrader   websocket.Upgrader
	logger     *log.Logger
	manager    *SessionManager
	httpServer *http.Server

	mu          sync.RWMutex
	connections map[*Connection]bool
}

// NewServer creates a WebSocket server on addr.
func NewServer(addr string, manager *SessionManager, logger *log.Logger) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is deferred to the deployment's proxy.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		manager:     manager,
		connections: make(map[*Connection]bool),
	}
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.logger.Info("starting websocket server", "addr", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down and closes every connection.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(ws, s.logger, s)
	s.mu.Lock()
	s.connections[conn] = true
	s.mu.Unlock()

	s.logger.Debug("client connected", "remote", ws.RemoteAddr())
	conn.Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) removeConnection(conn *Connection) {
	s.mu.Lock()
	delete(s.connections, conn)
	s.mu.Unlock()
}
