// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a prerecorded-audio transcription service (Deepgram,
// or anything with a similar word-level API) and returns every recognised word
// together with its speaker label and timing. Turning words into readable
// speaker-labelled sentences is the job of internal/transcript, not of the
// provider.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrEmptyAudio is returned by providers when Request.Audio has no bytes.
var ErrEmptyAudio = errors.New("stt: audio must not be empty")

// Request is a single prerecorded transcription request.
type Request struct {
	// Audio is the raw encoded audio (mp3, wav, m4a, webm, ...).
	Audio []byte

	// MimeType is the audio content type, e.g. "audio/mpeg". An empty value
	// lets the provider sniff the format.
	MimeType string
}

// Word is one recognised word.
type Word struct {
	// Speaker is the zero-based diarization label.
	Speaker int

	// Text is the raw lower-cased word.
	Text string

	// Punctuated is the word with smart formatting applied (capitalisation and
	// trailing punctuation). Falls back to Text when the provider has none.
	Punctuated string

	// Start and End are offsets into the audio in seconds.
	Start float64
	End   float64

	// Confidence is the recognition confidence (0.0–1.0).
	Confidence float64
}

// Result is the outcome of a transcription request.
type Result struct {
	// Transcript is the provider's flat transcript of the whole file.
	Transcript string

	// Words holds per-word detail in audio order. May be empty for silent audio.
	Words []Word

	// Duration is the audio length in seconds when reported.
	Duration float64
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe sends the audio to the backend and waits for the full result.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
