// Package server provides HTTP and WebSocket handlers
package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/disintegration/imaging"

	"github.com/veriface/platform/internal/camera"
	"github.com/veriface/platform/internal/orchestrator"
	"github.com/veriface/platform/internal/trace"
)

// Pipeline is the slice of the orchestrator the server drives.
type Pipeline interface {
	Start()
	Stop()
	OnFrame(frame camera.Frame) bool
	State() orchestrator.State
	Events() <-chan orchestrator.State
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

// FrameMessage carries a base64-encoded still image from the client.
type FrameMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// StateMessage pushes a pipeline state snapshot to clients.
type StateMessage struct {
	Type  string             `json:"type"`
	State orchestrator.State `json:"state"`
}

// AckMessage answers a frame push with the intake decision.
type AckMessage struct {
	Type     string `json:"type"`
	Admitted bool   `json:"admitted"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipe       Pipeline
	seq        atomic.Uint64
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server and starts the state broadcaster.
func New(pipe Pipeline) *Server {
	s := &Server{
		pipe:       pipe,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	go s.broadcastStates()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/frame", s.handleFrame)
	mux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	mux.HandleFunc("POST /api/session/stop", s.handleSessionStop)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// New clients get the current snapshot before any change events.
	_ = wsjson.Write(baseCtx, conn, StateMessage{Type: "state", State: s.pipe.State()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "frame":
			var fm FrameMessage
			if err := json.Unmarshal(msg, &fm); err != nil {
				continue
			}
			s.handleWSFrame(baseCtx, conn, fm)
		case "start":
			s.pipe.Start()
		case "stop":
			s.pipe.Stop()
		}
	}
}

func (s *Server) handleWSFrame(ctx context.Context, conn *websocket.Conn, fm FrameMessage) {
	ctx, span := trace.StartSpan(ctx, "ws_frame")
	defer span.End()
	log := trace.Logger(ctx)

	data, err := base64.StdEncoding.DecodeString(fm.Data)
	if err != nil {
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "invalid frame encoding"})
		return
	}
	frame, err := s.decodeFrame(data)
	if err != nil {
		log.Debug("frame decode failed", "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "undecodable image"})
		return
	}

	admitted := s.pipe.OnFrame(frame)
	span.SetAttr("admitted", admitted)
	_ = wsjson.Write(ctx, conn, AckMessage{Type: "ack", Admitted: admitted})
}

// broadcastStates fans pipeline state changes out to every connection.
func (s *Server) broadcastStates() {
	for st := range s.pipe.Events() {
		msg := StateMessage{Type: "state", State: st}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.pipe.State())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())

	data, err := io.ReadAll(io.LimitReader(r.Body, MaxFrameBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	frame, err := s.decodeFrame(data)
	if err != nil {
		log.Debug("frame decode failed", "error", err)
		http.Error(w, "undecodable image", http.StatusBadRequest)
		return
	}

	admitted := s.pipe.OnFrame(frame)
	w.Header().Set("Content-Type", "application/json")
	if admitted {
		w.WriteHeader(http.StatusAccepted)
	}
	_ = json.NewEncoder(w).Encode(AckMessage{Type: "ack", Admitted: admitted})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	s.pipe.Start()
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "session_started"})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	s.pipe.Stop()
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "session_stopped"})
}

func (s *Server) decodeFrame(data []byte) (camera.Frame, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return camera.Frame{}, err
	}
	return camera.Frame{
		Image:     img,
		Timestamp: time.Now(),
		Seq:       s.seq.Add(1),
	}, nil
}
