// Package mock provides a test double for the stt.Provider interface.
//
//	p := &mock.Provider{Result: &stt.Result{Words: words}}
//	res, _ := p.Transcribe(ctx, stt.Request{Audio: data})
package mock

import (
	"context"
	"sync"

	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe. May be nil.
	Result *stt.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every request passed to Transcribe.
	Calls []stt.Request
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(_ context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	return p.Result, p.Err
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

var _ stt.Provider = (*Provider)(nil)
