// Package llm abstracts the hosted and local model backends the agents
// call. Providers are deliberately non-streaming: the downstream JSON
// repair pipeline needs the complete reply text plus its finish reason to
// detect token-ceiling truncation, so partial chunks are useless here.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrNoDefaultProvider = errors.New("no default provider configured")
)

// FinishReasonMaxTokens is the normalized finish reason for a reply cut
// off at the output-token ceiling. The agents use it to log truncation
// repairs against the right cause.
const FinishReasonMaxTokens = "max_tokens"

// Provider is one model backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Generate performs one completion request.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single-turn completion request. The agents always send one
// prompt with an optional system preamble; multi-turn state lives in the
// prompts themselves (previous hints are replayed as prompt text).
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	StopSeqs    []string
}

// Response is a completed generation.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage tracks token usage.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Truncated reports whether the reply hit the output-token ceiling.
func (r *Response) Truncated() bool {
	return r.FinishReason == FinishReasonMaxTokens
}

// Registry manages model providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	defaultP  string
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// SetDefault sets the default provider.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	r.defaultP = name
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// Default returns the default provider. If the default is "auto" or
// unset, any registered provider is returned.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultP != "" && r.defaultP != "auto" {
		if p, ok := r.providers[r.defaultP]; ok {
			return p, nil
		}
	}

	for _, p := range r.providers {
		return p, nil
	}

	return nil, ErrNoDefaultProvider
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
