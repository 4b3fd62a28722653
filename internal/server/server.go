package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Server accepts WebSocket clients and hands them to the table service
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *log.Logger
	service  *TableService

	mu          sync.RWMutex
	connections map[*Connection]bool

	ctx    context.Context
	cancel context.CancelFunc
	httpd  *http.Server
}

// NewServer creates a WebSocket server front-ending the table service
func NewServer(addr string, logger *log.Logger, service *TableService) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// For development, allow all origins
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		service:     service,
		connections: make(map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Handler returns the server's HTTP routes. Tests mount this on an
// ephemeral listener instead of calling Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start listens for WebSocket clients; blocks until Stop
func (s *Server) Start() error {
	s.httpd = &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.logger.Info("starting WebSocket server", "addr", s.addr)
	err := s.httpd.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down and closes every connection
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.connections = make(map[*Connection]bool)
	s.mu.Unlock()

	if s.httpd != nil {
		return s.httpd.Shutdown(context.Background())
	}
	return nil
}

// handleWebSocket upgrades and registers a client
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s.service)
	s.mu.Lock()
	s.connections[client] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("client connected", "total", total)

	client.Start()

	go func() {
		<-client.ctx.Done()
		s.unregister(client)
	}()
}

// unregister removes a finished connection and releases the player's
// seat if they were at a table
func (s *Server) unregister(client *Connection) {
	s.mu.Lock()
	if _, ok := s.connections[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.connections, client)
	total := len(s.connections)
	s.mu.Unlock()

	playerID := client.PlayerID()
	tableID := client.TableID()
	if playerID != "" && tableID != "" {
		s.logger.Info("cleaning up disconnected player", "player", playerID, "table", tableID)
		if _, err := s.service.LeaveTable(s.ctx, tableID, playerID); err != nil {
			s.logger.Debug("disconnect cleanup failed", "player", playerID, "error", err)
		}
	}
	_ = client.Close()
	s.logger.Info("client disconnected", "total", total)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
