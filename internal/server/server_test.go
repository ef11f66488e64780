package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ashverse/animato/internal/app"
	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/internal/health"
	asrmock "github.com/ashverse/animato/pkg/provider/asr/mock"
	llmmock "github.com/ashverse/animato/pkg/provider/llm/mock"
	ttsmock "github.com/ashverse/animato/pkg/provider/tts/mock"
)

func testManager(t *testing.T, reply []string) *app.Manager {
	t.Helper()
	m := app.NewManager(app.ManagerConfig{
		Config: &config.Config{
			Server:       config.ServerConfig{LogLevel: config.LogInfo},
			Conversation: config.ConversationConfig{SampleRate: 16000},
		},
		Providers: app.Providers{
			ASR: &asrmock.Provider{},
			LLM: &llmmock.Provider{Chunks: reply},
			TTS: &ttsmock.Provider{},
		},
		Logger: slog.New(slog.DiscardHandler),
	})
	t.Cleanup(m.CloseAll)
	return m
}

func startServer(t *testing.T, m *app.Manager) *httptest.Server {
	t.Helper()
	s := New(config.ServerConfig{}, m, WithLogger(slog.New(slog.DiscardHandler)))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.SetReadLimit(1 << 20)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

// readFrame decodes the next frame into a generic map.
func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return m
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads frames until one has the given type, returning every frame
// read along the way (the matching one last).
func readUntil(t *testing.T, conn *websocket.Conn, frameType string) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for range 50 {
		f := readFrame(t, conn)
		frames = append(frames, f)
		if f["type"] == frameType {
			return frames
		}
	}
	t.Fatalf("no %q frame in %d reads", frameType, len(frames))
	return nil
}

// ─── websocket protocol ───

func TestServer_ConnectionEstablished(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testManager(t, nil))
	conn := dial(t, srv)

	f := readFrame(t, conn)
	if f["type"] != "connection-established" {
		t.Fatalf("first frame type = %v", f["type"])
	}
	sid, _ := f["sid"].(string)
	if sid == "" {
		t.Error("connection-established must carry a session id")
	}
}

func TestServer_TextTurnOverWire(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testManager(t, []string{"Hello from the wire!"}))
	conn := dial(t, srv)
	readFrame(t, conn) // connection-established

	writeFrame(t, conn, map[string]any{"type": "text_input", "text": "hi"})

	frames := readUntil(t, conn, "full-text")
	var sawText, sawAudio, sawEnd bool
	for _, f := range frames {
		switch f["type"] {
		case "text":
			if f["text"] == "Hello from the wire!" {
				sawText = true
			}
		case "audio_with_expression":
			if f["audio_data"] == "" {
				t.Error("audio frame without audio data")
			}
			sawAudio = true
		case "control":
			if f["text"] == "conversation-end" {
				sawEnd = true
			}
		}
	}
	if !sawText || !sawAudio || !sawEnd {
		t.Errorf("missing frames: text=%v audio=%v end=%v", sawText, sawAudio, sawEnd)
	}
}

func TestServer_MalformedFrame(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testManager(t, nil))
	conn := dial(t, srv)
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := readFrame(t, conn)
	if f["type"] != "error" {
		t.Fatalf("expected error frame, got %v", f["type"])
	}
}

func TestServer_UnknownFrameType(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testManager(t, nil))
	conn := dial(t, srv)
	readFrame(t, conn)

	writeFrame(t, conn, map[string]any{"type": "telemetry"})

	f := readFrame(t, conn)
	if f["type"] != "error" {
		t.Fatalf("expected error frame, got %v", f["type"])
	}
	if msg, _ := f["message"].(string); !strings.Contains(msg, "telemetry") {
		t.Errorf("error message should name the frame type, got %q", msg)
	}
}

func TestServer_DisconnectClosesSession(t *testing.T) {
	t.Parallel()
	m := testManager(t, nil)
	srv := startServer(t, m)
	conn := dial(t, srv)
	readFrame(t, conn)

	if m.Count() != 1 {
		t.Fatalf("Count = %d, want 1", m.Count())
	}

	conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && m.Count() != 0 {
		time.Sleep(2 * time.Millisecond)
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d after disconnect, want 0", m.Count())
	}
}

// ─── plain HTTP endpoints ───

func TestServer_Healthz(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testManager(t, nil))

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_ReadyzReflectsCheckers(t *testing.T) {
	t.Parallel()
	m := testManager(t, nil)
	s := New(config.ServerConfig{}, m,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithReadiness(health.Checker{
			Name:  "llm",
			Check: func(context.Context) error { return errors.New("offline") },
		}),
	)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := startServer(t, testManager(t, nil))

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

// ─── origin policy ───

func TestAcceptOptions(t *testing.T) {
	t.Parallel()
	s := New(config.ServerConfig{AllowedOrigins: []string{"example.com"}}, nil)
	opts := s.acceptOptions()
	if opts.InsecureSkipVerify {
		t.Error("named origins must keep the check on")
	}
	if len(opts.OriginPatterns) != 1 || opts.OriginPatterns[0] != "example.com" {
		t.Errorf("patterns = %v", opts.OriginPatterns)
	}

	s = New(config.ServerConfig{AllowedOrigins: []string{"*"}}, nil)
	if !s.acceptOptions().InsecureSkipVerify {
		t.Error("wildcard must disable the origin check")
	}
}
