package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	asrmock "github.com/ashverse/animato/pkg/provider/asr/mock"
	llmmock "github.com/ashverse/animato/pkg/provider/llm/mock"
	ttsmock "github.com/ashverse/animato/pkg/provider/tts/mock"
)

func testGroupConfig() GroupConfig {
	return GroupConfig{
		Breaker: BreakerConfig{MaxFailures: 2, Cooldown: time.Minute},
		Logger:  slog.New(slog.DiscardHandler),
	}
}

// ─── asr ───

func TestASRFallback_PrimaryHealthy(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Provider{Text: "from primary"}
	backup := &asrmock.Provider{Text: "from backup"}

	f := NewASRFallback("primary", primary, testGroupConfig())
	f.Add("backup", backup)

	got, err := f.Transcribe(context.Background(), []float32{0.1})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "from primary" {
		t.Errorf("text = %q, want primary's", got)
	}
}

func TestASRFallback_FailsOver(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Provider{Err: errors.New("api down")}
	backup := &asrmock.Provider{Text: "from backup"}

	f := NewASRFallback("primary", primary, testGroupConfig())
	f.Add("backup", backup)

	got, err := f.Transcribe(context.Background(), []float32{0.1})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "from backup" {
		t.Errorf("text = %q, want backup's", got)
	}
}

func TestASRFallback_AllFail(t *testing.T) {
	t.Parallel()
	f := NewASRFallback("primary", &asrmock.Provider{Err: errors.New("down")}, testGroupConfig())
	f.Add("backup", &asrmock.Provider{Err: errors.New("also down")})

	_, err := f.Transcribe(context.Background(), []float32{0.1})
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Errorf("err = %v, want ErrAllBackendsFailed", err)
	}
}

func TestASRFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()
	primary := &asrmock.Provider{Err: errors.New("down")}
	backup := &asrmock.Provider{Text: "ok"}

	f := NewASRFallback("primary", primary, testGroupConfig())
	f.Add("backup", backup)

	// MaxFailures is 2: two failed turns open the primary's breaker.
	for range 3 {
		if _, err := f.Transcribe(context.Background(), []float32{0.1}); err != nil {
			t.Fatalf("Transcribe: %v", err)
		}
	}
	if primary.CallCount() != 2 {
		t.Errorf("primary calls = %d, want 2 (breaker open afterwards)", primary.CallCount())
	}
}

func TestASRFallback_AvailableTracksBreakers(t *testing.T) {
	t.Parallel()
	f := NewASRFallback("primary", &asrmock.Provider{Err: errors.New("down")}, testGroupConfig())
	f.Add("backup", &asrmock.Provider{Err: errors.New("also down")})

	if !f.Available() {
		t.Fatal("a fresh chain must report available")
	}
	// MaxFailures is 2: two failed turns open every breaker in the chain.
	for range 2 {
		_, _ = f.Transcribe(context.Background(), []float32{0.1})
	}
	if f.Available() {
		t.Error("all breakers open, chain must report unavailable")
	}
}

// ─── llm ───

func TestLLMFallback_FailsOverOnStart(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{StartErr: errors.New("quota")}
	backup := &llmmock.Provider{Chunks: []string{"backup reply"}}

	f := NewLLMFallback("primary", primary, testGroupConfig())
	f.Add("backup", backup)

	stream, err := f.ChatStream(context.Background(), nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	defer stream.Close()

	chunk, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if chunk != "backup reply" {
		t.Errorf("chunk = %q", chunk)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("second Recv err = %v, want io.EOF", err)
	}
}

func TestLLMFallback_MidStreamErrorNotRetried(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{Chunks: []string{"partial"}, RecvErr: errors.New("cut off")}
	backup := &llmmock.Provider{Chunks: []string{"never seen"}}

	f := NewLLMFallback("primary", primary, testGroupConfig())
	f.Add("backup", backup)

	stream, err := f.ChatStream(context.Background(), nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	defer stream.Close()

	stream.Recv()
	if _, err := stream.Recv(); err == nil {
		t.Error("mid-stream failure must reach the caller")
	}
	if backup.CallCount() != 0 {
		t.Errorf("backup calls = %d, want 0", backup.CallCount())
	}
}

// ─── tts ───

func TestTTSFallback_FormatFollowsBackend(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{Err: errors.New("down")}
	backup := &ttsmock.Provider{Audio: []byte("riff"), Format: "wav"}

	f := NewTTSFallback("primary", primary, testGroupConfig())
	f.Add("backup", backup)

	audio, format, err := f.Synthesize(context.Background(), "Hello.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if format != "wav" || len(audio) == 0 {
		t.Errorf("got format %q, %d bytes", format, len(audio))
	}
}

func TestTTSFallback_AllFail(t *testing.T) {
	t.Parallel()
	f := NewTTSFallback("primary", &ttsmock.Provider{Err: errors.New("down")}, testGroupConfig())

	_, _, err := f.Synthesize(context.Background(), "Hello.")
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Errorf("err = %v, want ErrAllBackendsFailed", err)
	}
}
