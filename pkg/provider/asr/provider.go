// Package asr defines the Provider interface for speech-recognition backends.
//
// An ASR provider wraps a transcription service (the OpenAI Whisper API, a
// local whisper.cpp model, or a test mock) behind a single batch call: the
// orchestrator hands it one complete utterance as 16 kHz mono float32 PCM
// and receives the recognized text.
//
// Implementations must be safe for concurrent use; one provider instance is
// shared by every session.
package asr

import "context"

// SampleRate is the PCM sample rate every provider expects, in Hz.
const SampleRate = 16000

// Provider is the abstraction over any speech-recognition backend.
type Provider interface {
	// Transcribe converts one utterance of 16 kHz mono float32 PCM (samples
	// in [-1, 1]) into text. Returns "" (and nil error) when the provider
	// determines the utterance is silence. Transport and provider failures
	// are reported as asr_unavailable faults.
	//
	// Implementations must honour ctx cancellation between I/O operations.
	Transcribe(ctx context.Context, samples []float32) (string, error)
}
