// Package dashboard serves a live view of sync progress over WebSockets.
//
// The server runs inside the dashboard command, not the daemon: it polls
// the state file the daemon maintains and follows the daemon log,
// broadcasting both to connected clients.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType distinguishes dashboard broadcasts.
type MessageType string

const (
	// MessageTypeStats carries a sync progress snapshot.
	MessageTypeStats MessageType = "stats"

	// MessageTypeLog carries one daemon log line.
	MessageTypeLog MessageType = "log"
)

// Message is the dashboard wire format.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SourceStats mirrors one source's cursor for display.
type SourceStats struct {
	LastLine   int `json:"lastLine"`
	BatchCount int `json:"batchCount"`
}

// StatsData is a point-in-time snapshot of daemon progress.
type StatsData struct {
	Running      bool                   `json:"running"`
	TotalSynced  int                    `json:"totalSynced"`
	LastSyncTime int64                  `json:"lastSyncTime"`
	Sources      map[string]SourceStats `json:"sources,omitempty"`
}

// LogData is one scrubbed daemon log line.
type LogData struct {
	Line string `json:"line"`
}

// Server manages WebSocket connections and broadcasts dashboard messages.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// lastStats is replayed to clients on connect so a fresh page has
	// state before the next poll tick.
	lastStats   json.RawMessage
	lastStatsMu sync.RWMutex

	// Message broadcasting
	broadcast chan Message

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// Config holds server configuration.
type Config struct {
	// Addr is the TCP listen address (default: 127.0.0.1:7343).
	Addr string

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:   "127.0.0.1:7343",
		Logger: log.Default(),
	}
}

// NewServer creates a dashboard WebSocket server.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Addr == "" {
		config.Addr = "127.0.0.1:7343"
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      config.Addr,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on http://%s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Broadcast queues a message for all connected clients. Stats snapshots
// are also cached for replay to new clients.
func (s *Server) Broadcast(msg Message) {
	if msg.Type == MessageTypeStats {
		s.lastStatsMu.Lock()
		s.lastStats = msg.Data
		s.lastStatsMu.Unlock()
	}

	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// broadcastLoop fans queued messages out to all clients.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}

			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Write outside the lock so one slow client cannot stall
			// bookkeeping.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // Local-only server, any page may connect
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", clientCount)

	// Replay the latest stats snapshot so the page renders immediately.
	s.lastStatsMu.RLock()
	welcome := Message{
		Type:      MessageTypeStats,
		Timestamp: time.Now(),
		Data:      s.lastStats,
	}
	s.lastStatsMu.RUnlock()

	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()

	go s.readLoop(conn)
}

// readLoop keeps the connection alive and notices client disconnects.
// Client messages are not processed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection.
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", clientCount)
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	clientCount := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clientCount,
	})
}

// handleRoot serves the single-page live view.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, indexHTML)
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>memrelay dashboard</title>
    <style>
        body { font-family: monospace; margin: 2em; background: #1a1b26; color: #c0caf5; }
        h1 { color: #7aa2f7; }
        #log { white-space: pre-wrap; border-top: 1px solid #414868; margin-top: 1em; padding-top: 1em; }
    </style>
</head>
<body>
    <h1>memrelay</h1>
    <p id="status">connecting...</p>
    <p id="totals"></p>
    <ul id="sources"></ul>
    <div id="log"></div>
    <script>
        const ws = new WebSocket("ws://" + location.host + "/ws");
        ws.onopen = () => { document.getElementById("status").textContent = "connected"; };
        ws.onclose = () => { document.getElementById("status").textContent = "disconnected"; };
        ws.onmessage = (ev) => {
            const msg = JSON.parse(ev.data);
            if (msg.type === "stats" && msg.data) {
                const s = msg.data;
                document.getElementById("totals").textContent =
                    (s.running ? "daemon running" : "daemon stopped") +
                    " | " + s.totalSynced + " records synced";
                const list = document.getElementById("sources");
                list.innerHTML = "";
                for (const [id, src] of Object.entries(s.sources || {})) {
                    const li = document.createElement("li");
                    li.textContent = id + ": line " + src.lastLine + ", " + src.batchCount + " batches";
                    list.appendChild(li);
                }
            } else if (msg.type === "log" && msg.data) {
                document.getElementById("log").textContent += msg.data.line + "\n";
            }
        };
    </script>
</body>
</html>
`
