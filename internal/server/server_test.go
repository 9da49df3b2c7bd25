package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriface/platform/internal/camera"
	"github.com/veriface/platform/internal/orchestrator"
)

type fakePipeline struct {
	mu      sync.Mutex
	started bool
	stopped bool
	frames  []camera.Frame
	admit   bool
	state   orchestrator.State
	events  chan orchestrator.State
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		admit:  true,
		state:  orchestrator.State{Phase: orchestrator.PhaseDetecting},
		events: make(chan orchestrator.State, 4),
	}
}

func (p *fakePipeline) Start() {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
}

func (p *fakePipeline) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *fakePipeline) OnFrame(frame camera.Frame) bool {
	p.mu.Lock()
	p.frames = append(p.frames, frame)
	p.mu.Unlock()
	return p.admit
}

func (p *fakePipeline) State() orchestrator.State         { return p.state }
func (p *fakePipeline) Events() <-chan orchestrator.State { return p.events }

func (p *fakePipeline) frameCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func pngBody(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32))))
	return buf.Bytes()
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest("GET", "/test", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStateEndpoint(t *testing.T) {
	pipe := newFakePipeline()
	pipe.state = orchestrator.State{Phase: orchestrator.PhaseMatched, Progress: 1, Name: "Dana Reyes"}
	srv := New(pipe)

	req := httptest.NewRequest("GET", "/api/state", http.NoBody)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "matched", got["phase"])
	assert.Equal(t, "Dana Reyes", got["name"])
}

func TestSessionEndpoints(t *testing.T) {
	pipe := newFakePipeline()
	srv := New(pipe)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/start", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, pipe.started)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/session/stop", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, pipe.stopped)
}

func TestFrameEndpointAdmitted(t *testing.T) {
	pipe := newFakePipeline()
	srv := New(pipe)

	req := httptest.NewRequest("POST", "/api/frame", bytes.NewReader(pngBody(t)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var ack AckMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Admitted)
	require.Equal(t, 1, pipe.frameCount())
	assert.Equal(t, uint64(1), pipe.frames[0].Seq)
	assert.NotNil(t, pipe.frames[0].Image)
}

func TestFrameEndpointDropped(t *testing.T) {
	pipe := newFakePipeline()
	pipe.admit = false
	srv := New(pipe)

	req := httptest.NewRequest("POST", "/api/frame", bytes.NewReader(pngBody(t)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var ack AckMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.False(t, ack.Admitted)
}

func TestFrameEndpointUndecodable(t *testing.T) {
	pipe := newFakePipeline()
	srv := New(pipe)

	req := httptest.NewRequest("POST", "/api/frame", strings.NewReader("not an image"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, pipe.frameCount())
}

func TestFrameSequenceIncrements(t *testing.T) {
	pipe := newFakePipeline()
	srv := New(pipe)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/frame", bytes.NewReader(pngBody(t)))
		srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Equal(t, 3, pipe.frameCount())
	assert.Equal(t, uint64(3), pipe.frames[2].Seq)
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := &rateLimiter{}
	for i := 0; i < RateLimitMessages; i++ {
		assert.True(t, rl.allow(), "message %d within budget", i)
	}
	assert.False(t, rl.allow(), "message beyond budget")
}

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(httpURL, "http")+"/ws", nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var raw json.RawMessage
	require.NoError(t, wsjson.Read(ctx, conn, &raw))
	var base Message
	require.NoError(t, json.Unmarshal(raw, &base))
	return base.Type, raw
}

func TestWebSocketSnapshotAndBroadcast(t *testing.T) {
	pipe := newFakePipeline()
	srv := httptest.NewServer(New(pipe).Handler())
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Connecting yields the current snapshot first.
	typ, raw := readMessage(t, conn)
	require.Equal(t, "state", typ)
	var sm StateMessage
	require.NoError(t, json.Unmarshal(raw, &sm))
	assert.Equal(t, "detecting", sm.State.Phase.String())

	// A pipeline event reaches the connected client.
	pipe.events <- orchestrator.State{Phase: orchestrator.PhaseMatched, Progress: 1, Name: "Dana Reyes"}
	typ, raw = readMessage(t, conn)
	require.Equal(t, "state", typ)
	require.NoError(t, json.Unmarshal(raw, &sm))
	assert.Equal(t, orchestrator.PhaseMatched, sm.State.Phase)
	assert.Equal(t, "Dana Reyes", sm.State.Name)
}

func TestWebSocketFramePush(t *testing.T) {
	pipe := newFakePipeline()
	srv := httptest.NewServer(New(pipe).Handler())
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	typ, _ := readMessage(t, conn)
	require.Equal(t, "state", typ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, FrameMessage{
		Type: "frame",
		Data: base64.StdEncoding.EncodeToString(pngBody(t)),
	}))

	typ, raw := readMessage(t, conn)
	require.Equal(t, "ack", typ)
	var ack AckMessage
	require.NoError(t, json.Unmarshal(raw, &ack))
	assert.True(t, ack.Admitted)
	assert.Equal(t, 1, pipe.frameCount())
}

func TestWebSocketControlMessages(t *testing.T) {
	pipe := newFakePipeline()
	srv := httptest.NewServer(New(pipe).Handler())
	defer srv.Close()

	conn := dialWS(t, srv.URL)
	defer conn.Close(websocket.StatusNormalClosure, "")

	typ, _ := readMessage(t, conn)
	require.Equal(t, "state", typ)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, Message{Type: "start"}))
	require.NoError(t, wsjson.Write(ctx, conn, Message{Type: "stop"}))

	require.Eventually(t, func() bool {
		pipe.mu.Lock()
		defer pipe.mu.Unlock()
		return pipe.started && pipe.stopped
	}, 2*time.Second, 5*time.Millisecond)
}
