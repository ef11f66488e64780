package audio

import (
	"math"
	"testing"

	"github.com/ashverse/animato/pkg/fault"
)

// sine returns sr samples of a 440 Hz tone at the given amplitude.
func sine(sr int, amplitude float64) []float64 {
	out := make([]float64, sr)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(sr))
	}
	return out
}

// ─── clip basics ───

func TestClip_Duration(t *testing.T) {
	t.Parallel()
	c := Clip{Samples: make([]float64, 24000), SampleRate: 16000}
	if got := c.Duration(); got != 1.5 {
		t.Errorf("Duration = %v, want 1.5", got)
	}
	if got := (Clip{}).Duration(); got != 0 {
		t.Errorf("empty clip Duration = %v, want 0", got)
	}
}

func TestFromPCM16_DownmixesStereo(t *testing.T) {
	t.Parallel()
	// One frame: left = 16384, right = -16384, averages to silence.
	pcm := []byte{0x00, 0x40, 0x00, 0xC0}
	c := FromPCM16(pcm, 48000, 2)
	if len(c.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(c.Samples))
	}
	if math.Abs(c.Samples[0]) > 1e-9 {
		t.Errorf("downmixed sample = %v, want 0", c.Samples[0])
	}
}

func TestClip_Int16Clamps(t *testing.T) {
	t.Parallel()
	c := Clip{Samples: []float64{1.5, -1.5, 0}, SampleRate: 16000}
	pcm := c.Int16()
	if pcm[0] != math.MaxInt16 || pcm[1] != math.MinInt16 || pcm[2] != 0 {
		t.Errorf("Int16 = %v", pcm)
	}
}

// ─── wav ───

func TestDecode_WAVRoundTrip(t *testing.T) {
	t.Parallel()
	in := Clip{Samples: sine(16000, 0.5), SampleRate: 16000}

	out, err := Decode(EncodeWAV(in), "wav")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 16000 {
		t.Errorf("sample rate = %d", out.SampleRate)
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("samples = %d, want %d", len(out.Samples), len(in.Samples))
	}
	for i := range out.Samples {
		if math.Abs(out.Samples[i]-in.Samples[i]) > 1.0/16384 {
			t.Fatalf("sample %d drifted: %v vs %v", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestDecode_FormatTagNormalised(t *testing.T) {
	t.Parallel()
	data := EncodeWAV(Clip{Samples: sine(8000, 0.2), SampleRate: 8000})
	for _, tag := range []string{"wav", "WAV", ".wav"} {
		if _, err := Decode(data, tag); err != nil {
			t.Errorf("Decode(%q): %v", tag, err)
		}
	}
}

func TestDecode_NotRIFF(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("this is not audio"), "wav")
	if fault.KindOf(err) != fault.DecodeFailed {
		t.Errorf("err = %v, want decode_failed fault", err)
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte{0, 1, 2}, "ogg")
	if fault.KindOf(err) != fault.DecodeFailed {
		t.Errorf("err = %v, want decode_failed fault", err)
	}
}

func TestDecode_GarbageMP3(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("definitely not mpeg frames"), "mp3")
	if fault.KindOf(err) != fault.DecodeFailed {
		t.Errorf("err = %v, want decode_failed fault", err)
	}
}

// ─── envelope ───

func TestEnvelope_WindowCount(t *testing.T) {
	t.Parallel()
	// 1 s at 16 kHz: 50 windows of 320 samples.
	c := Clip{Samples: sine(16000, 0.5), SampleRate: 16000}
	env := Envelope(c)
	if len(env) != EnvelopeRate {
		t.Errorf("len = %d, want %d", len(env), EnvelopeRate)
	}
	for i, v := range env {
		if v < 0 || v > 1 {
			t.Fatalf("env[%d] = %v, out of [0, 1]", i, v)
		}
	}
}

func TestEnvelope_SilenceIsZero(t *testing.T) {
	t.Parallel()
	c := Clip{Samples: make([]float64, 16000), SampleRate: 16000}
	for i, v := range Envelope(c) {
		if v != 0 {
			t.Fatalf("env[%d] = %v for silence", i, v)
		}
	}
}

func TestEnvelope_LoudClipSaturates(t *testing.T) {
	t.Parallel()
	samples := make([]float64, 16000)
	for i := range samples {
		samples[i] = 0.9
	}
	env := Envelope(Clip{Samples: samples, SampleRate: 16000})
	if env[0] != 1.0 {
		t.Errorf("env[0] = %v, want clamped to 1.0", env[0])
	}
}

func TestEnvelope_ShortClipYieldsOneValue(t *testing.T) {
	t.Parallel()
	c := Clip{Samples: []float64{0.4, 0.4, 0.4}, SampleRate: 16000}
	env := Envelope(c)
	if len(env) != 1 {
		t.Fatalf("len = %d, want 1 for sub-window clip", len(env))
	}
}

func TestEnvelope_EmptyClip(t *testing.T) {
	t.Parallel()
	if env := Envelope(Clip{}); env != nil {
		t.Errorf("env = %v, want nil", env)
	}
}

func TestEnvelopeWithGain(t *testing.T) {
	t.Parallel()
	samples := make([]float64, 320)
	for i := range samples {
		samples[i] = 0.1
	}
	c := Clip{Samples: samples, SampleRate: 16000}

	low := EnvelopeWithGain(c, 1.0)
	high := EnvelopeWithGain(c, 5.0)
	if !(low[0] < high[0]) {
		t.Errorf("gain must scale the envelope: %v vs %v", low[0], high[0])
	}
}
