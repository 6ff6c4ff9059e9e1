// Package provider defines the contract between the gateway and upstream
// advisor providers. Providers are opaque collaborators: the gateway never
// looks inside a request or response, it only selects which provider handles
// a consult and records the outcome.
package provider

import "context"

// Request is a single consult sent to an upstream provider on behalf of an
// advisor persona.
type Request struct {
	Advisor   string         `json:"advisor"`
	Prompt    string         `json:"prompt"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Response is the provider's answer to a consult.
type Response struct {
	Provider string `json:"provider"`
	Content  string `json:"content"`
	Tokens   int    `json:"tokens,omitempty"`
}

// Provider is implemented by upstream LLM endpoints. Complete blocks until
// the provider answers or the context is done.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a plain function to the Provider interface.
type Func struct {
	ProviderName string
	Fn           func(ctx context.Context, req *Request) (*Response, error)
}

// Name returns the provider identifier.
func (f Func) Name() string { return f.ProviderName }

// Complete invokes the wrapped function.
func (f Func) Complete(ctx context.Context, req *Request) (*Response, error) {
	return f.Fn(ctx, req)
}

// Config describes one configured provider. Priority is ascending: priority 1
// is tried before priority 2. Disabled providers never receive requests.
type Config struct {
	Name     string `yaml:"name" json:"name"`
	Priority int    `yaml:"priority" json:"priority"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
}
