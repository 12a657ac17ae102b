package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/events"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/observe"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

const (
	// NoTranscriptionMessage is shown when the provider could not transcribe.
	NoTranscriptionMessage = "No transcription available."

	// SilentAudioMessage is shown when transcription produced no words.
	SilentAudioMessage = "No transcription available. The audio might be of low quality or silent."
)

// ErrNoTranscription wraps every provider failure.
var ErrNoTranscription = errors.New("transcript: no transcription available")

// Transcript is a diarized transcription result.
type Transcript struct {
	Segments []Segment `json:"segments"`

	// Duration is the audio length in seconds as reported by the provider.
	Duration float64 `json:"duration"`
}

// String renders the transcript, or [SilentAudioMessage] when it is empty.
func (t *Transcript) String() string {
	if len(t.Segments) == 0 {
		return SilentAudioMessage
	}
	return Format(t.Segments)
}

// Option configures a [Service].
type Option func(*Service)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher publishes a transcription.completed event per success.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithProviderName labels provider metrics. Default "stt".
func WithProviderName(name string) Option {
	return func(s *Service) { s.providerName = name }
}

// Service transcribes uploaded audio and diarizes the result.
type Service struct {
	stt          stt.Provider
	metrics      *observe.Metrics
	publisher    events.Publisher
	providerName string
}

// NewService creates a Service backed by provider.
func NewService(provider stt.Provider, opts ...Option) *Service {
	s := &Service{stt: provider, publisher: events.Nop{}, providerName: "stt"}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Transcribe sends audio to the provider. Empty audio returns
// [stt.ErrEmptyAudio]; any provider failure returns an error wrapping
// [ErrNoTranscription].
func (s *Service) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, stt.ErrEmptyAudio
	}

	ctx, span := observe.StartSpan(ctx, "transcript.transcribe")
	defer span.End()

	start := time.Now()
	res, err := s.stt.Transcribe(ctx, stt.Request{Audio: audio, MimeType: mimeType})
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", s.providerName)))
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.providerName, "stt", observe.StatusError)
		s.metrics.RecordProviderError(ctx, s.providerName, "stt")
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrNoTranscription, err)
	}
	s.metrics.RecordProviderRequest(ctx, s.providerName, "stt", observe.StatusOK)

	t := &Transcript{Segments: Diarize(res.Words), Duration: res.Duration}
	if t.Segments == nil {
		t.Segments = []Segment{}
	}
	span.SetAttributes(attribute.Int("transcript.segments", len(t.Segments)))

	if err := s.publisher.Publish(ctx, events.New(events.TypeTranscriptionCompleted, events.TranscriptionCompleted{
		Segments: len(t.Segments),
		Speakers: Speakers(t.Segments),
	})); err != nil {
		observe.Logger(ctx).Warn("publish event failed", "type", events.TypeTranscriptionCompleted, "error", err)
	}
	return t, nil
}
