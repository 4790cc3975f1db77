package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/webcamize/internal/config"
	"github.com/bryanchriswhite/webcamize/internal/logger"
	"github.com/bryanchriswhite/webcamize/internal/stream"
)

// Server represents the HTTP status server
type Server struct {
	router    *mux.Router
	stats     *stream.Stats
	configMgr *config.Manager
	version   string
	upgrader  websocket.Upgrader

	// PushInterval is how often /api/stream sends a snapshot
	PushInterval time.Duration

	httpServer *http.Server
	done       chan struct{}
}

// NewServer creates a new status server. It only reads stats.
func NewServer(stats *stream.Stats, configMgr *config.Manager, version string) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		stats:     stats,
		configMgr: configMgr,
		version:   version,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tooling only
			},
		},
		PushInterval: time.Second,
		done:         make(chan struct{}),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/stream", s.handleStream)

	s.router.PathPrefix("/").HandlerFunc(s.handleIndex)
}

// Handler returns the routed handler with CORS headers
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log := logger.WithComponent("api")
	log.Info().Msgf("Status API on http://%s/api/status", ln.Addr())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("Status API stopped")
		}
	}()
	return nil
}

// Shutdown stops the server and closes stream connections
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": s.version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.stats.Snapshot())
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "no configuration loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, s.configMgr.Get())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	// drain client frames so close messages are noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.PushInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.stats.Snapshot()); err != nil {
			log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-s.done:
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>webcamize</title>
</head>
<body>
    <h1>webcamize</h1>
    <ul>
        <li><a href="/api/health">/api/health</a> - Server health check</li>
        <li><a href="/api/status">/api/status</a> - Stream statistics</li>
        <li><a href="/api/config">/api/config</a> - Active configuration</li>
        <li><code>/api/stream</code> - WebSocket feed of stream statistics</li>
    </ul>
</body>
</html>`

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
