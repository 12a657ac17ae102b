// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// prerecorded REST API. It implements the stt.Provider interface.
package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

const (
	defaultBaseURL  = "https://api.deepgram.com/v1/listen"
	defaultModel    = "nova-2"
	defaultLanguage = "en"
	defaultTimeout  = 5 * time.Minute

	// maxErrorBody caps how much of an error response is read into the error message.
	maxErrorBody = 4 << 10
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithBaseURL overrides the listen endpoint. Used by tests and self-hosted
// Deepgram deployments.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithTimeout sets the HTTP client timeout. Ignored when WithHTTPClient is also given.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// Provider implements stt.Provider backed by the Deepgram prerecorded API.
type Provider struct {
	apiKey   string
	model    string
	language string
	baseURL  string
	timeout  time.Duration
	client   *http.Client
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		baseURL:  defaultBaseURL,
		timeout:  defaultTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.timeout}
	}
	return p, nil
}

// Transcribe uploads the audio and returns Deepgram's word-level result with
// speaker diarization enabled.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, stt.ErrEmptyAudio
	}

	endpoint, err := p.buildURL()
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("deepgram: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	mime := req.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	httpReq.Header.Set("Content-Type", mime)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepgram: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("deepgram: status %d: %s", resp.StatusCode, errorMessage(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepgram: read response: %w", err)
	}
	return parseResponse(body)
}

// buildURL constructs the listen endpoint URL with the recognition options.
func (p *Provider) buildURL() (string, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("smart_format", "true")
	q.Set("language", p.language)
	q.Set("diarize", "true")
	q.Set("profanity_filter", "false")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseResponse extracts the first channel's first alternative from a
// prerecorded response body.
func parseResponse(body []byte) (*stt.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("deepgram: response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	alt := doc.Get("results.channels.0.alternatives.0")
	if !alt.Exists() {
		return nil, errors.New("deepgram: response has no alternatives")
	}

	res := &stt.Result{
		Transcript: alt.Get("transcript").String(),
		Duration:   doc.Get("metadata.duration").Float(),
	}
	alt.Get("words").ForEach(func(_, w gjson.Result) bool {
		word := stt.Word{
			Speaker:    int(w.Get("speaker").Int()),
			Text:       w.Get("word").String(),
			Punctuated: w.Get("punctuated_word").String(),
			Start:      w.Get("start").Float(),
			End:        w.Get("end").Float(),
			Confidence: w.Get("confidence").Float(),
		}
		if word.Punctuated == "" {
			word.Punctuated = word.Text
		}
		res.Words = append(res.Words, word)
		return true
	})
	return res, nil
}

// errorMessage pulls err_msg out of a Deepgram error body, falling back to the
// raw body.
func errorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "err_msg"); msg.Exists() {
		if code := gjson.GetBytes(body, "err_code"); code.Exists() {
			return code.String() + ": " + msg.String()
		}
		return msg.String()
	}
	return strconv.Quote(string(body))
}
