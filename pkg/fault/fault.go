// Package fault defines the enumerated error kinds used across the Animato
// conversation core and a typed error that carries one.
//
// Every error surfaced to a client as an `error` frame originates from a
// *Error. Kinds are stable wire-level identifiers; the Message is the
// human-readable text shown to the user. Wrapped causes are preserved for
// errors.Is / errors.As and for server-side logging, but are never sent to
// the client.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. The string values are part of the
// client protocol and must not change.
type Kind string

const (
	// ConfigInvalid marks a malformed or unknown configuration value.
	// Fatal at startup only; sealed bindings make it impossible at runtime.
	ConfigInvalid Kind = "config_invalid"

	// ConfigMissingEnv marks a ${VAR} reference whose variable is unset.
	ConfigMissingEnv Kind = "config_missing_env"

	// ASRUnavailable marks a transport or provider failure during transcription.
	ASRUnavailable Kind = "asr_unavailable"

	// LLMUnavailable marks a failure starting or continuing an LLM stream.
	LLMUnavailable Kind = "llm_unavailable"

	// TTSUnavailable marks a failure synthesizing speech for a sentence.
	TTSUnavailable Kind = "tts_unavailable"

	// DecodeFailed marks an audio artifact that could not be decoded for
	// envelope analysis.
	DecodeFailed Kind = "decode_failed"

	// TurnTimeout marks a turn cancelled by the per-turn wall-clock timeout.
	TurnTimeout Kind = "turn_timeout"

	// Interrupted marks a successful barge-in. Informational: clients render
	// it as a neutral status, not a failure.
	Interrupted Kind = "interrupted"

	// HandlerFailed marks an event-bus subscriber that returned an error.
	// Isolated by the bus; never aborts event delivery.
	HandlerFailed Kind = "handler_failed"
)

// IsValid reports whether k is a recognised error kind.
func (k Kind) IsValid() bool {
	switch k {
	case ConfigInvalid, ConfigMissingEnv, ASRUnavailable, LLMUnavailable,
		TTSUnavailable, DecodeFailed, TurnTimeout, Interrupted, HandlerFailed:
		return true
	}
	return false
}

// Error is a failure tagged with a Kind. The zero value is not valid; use
// [New], [Newf] or [Wrap].
type Error struct {
	// Kind classifies the failure for clients and for state-machine decisions.
	Kind Kind

	// Message is the human-readable text forwarded to the client. Always
	// non-empty for errors produced by this package's constructors.
	Message string

	// Err is the wrapped cause, if any. Server-side only.
	Err error
}

// New returns an Error of the given kind with a fixed message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf returns an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind that wraps cause. The message is
// shown to the client; cause is retained for errors.Is / errors.As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, unwrapping as needed. Returns ""
// when err carries no *Error anywhere in its chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
