package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

const sampleResponse = `{
  "metadata": {"request_id": "abc", "duration": 4.2, "channels": 1},
  "results": {"channels": [{"alternatives": [{
    "transcript": "hello there how are you i am fine",
    "confidence": 0.98,
    "words": [
      {"word": "hello", "start": 0.1, "end": 0.4, "confidence": 0.99, "speaker": 0, "punctuated_word": "Hello"},
      {"word": "there", "start": 0.4, "end": 0.7, "confidence": 0.97, "speaker": 0, "punctuated_word": "there."},
      {"word": "how", "start": 1.0, "end": 1.2, "confidence": 0.95, "speaker": 1, "punctuated_word": "How"},
      {"word": "are", "start": 1.2, "end": 1.3, "confidence": 0.96, "speaker": 1},
      {"word": "you", "start": 1.3, "end": 1.5, "confidence": 0.94, "speaker": 1, "punctuated_word": "you?"}
    ]
  }]}]}
}`

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rawURL, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "model", "nova-2", q.Get("model"))
	assertEqual(t, "smart_format", "true", q.Get("smart_format"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "diarize", "true", q.Get("diarize"))
	assertEqual(t, "profanity_filter", "false", q.Get("profanity_filter"))
}

func TestBuildURL_Options(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("de"), WithBaseURL("http://localhost:8080/v1/listen"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rawURL, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	assertEqual(t, "host", "localhost:8080", u.Host)
	assertEqual(t, "model", "base", u.Query().Get("model"))
	assertEqual(t, "language", "de", u.Query().Get("language"))
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// ---- response parsing ----

func TestParseResponse(t *testing.T) {
	res, err := parseResponse([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if res.Duration != 4.2 {
		t.Errorf("duration: got %v, want 4.2", res.Duration)
	}
	if len(res.Words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(res.Words))
	}
	w := res.Words[1]
	assertEqual(t, "punctuated", "there.", w.Punctuated)
	if w.Speaker != 0 {
		t.Errorf("speaker: got %d, want 0", w.Speaker)
	}
	if res.Words[2].Speaker != 1 {
		t.Errorf("speaker: got %d, want 1", res.Words[2].Speaker)
	}
	// Missing punctuated_word falls back to the raw word.
	assertEqual(t, "fallback", "are", res.Words[3].Punctuated)
}

func TestParseResponse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"no alternatives", `{"results": {"channels": []}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseResponse([]byte(tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseResponse_Silent(t *testing.T) {
	res, err := parseResponse([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"","words":[]}]}]}}`))
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	if len(res.Words) != 0 {
		t.Errorf("expected no words, got %d", len(res.Words))
	}
}

// ---- end to end against a fake server ----

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assertEqual(t, "method", http.MethodPost, r.Method)
		assertEqual(t, "auth", "Token dg-key", r.Header.Get("Authorization"))
		assertEqual(t, "content-type", "audio/mpeg", r.Header.Get("Content-Type"))
		assertEqual(t, "diarize", "true", r.URL.Query().Get("diarize"))
		body, _ := io.ReadAll(r.Body)
		assertEqual(t, "body", "ID3fake", string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer srv.Close()

	p, err := New("dg-key", WithBaseURL(srv.URL+"/v1/listen"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("ID3fake"), MimeType: "audio/mpeg"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(res.Words) != 5 {
		t.Errorf("expected 5 words, got %d", len(res.Words))
	}
}

func TestTranscribe_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"err_code":"INVALID_AUTH","err_msg":"Invalid credentials."}`)
	}))
	defer srv.Close()

	p, _ := New("bad", WithBaseURL(srv.URL))
	_, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte{1, 2, 3}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "INVALID_AUTH: Invalid credentials.") {
		t.Errorf("error should carry Deepgram message, got %v", err)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Transcribe(context.Background(), stt.Request{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
