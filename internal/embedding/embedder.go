package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Embedder returns the embedding vector of a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmptyInputError is returned by Client.Embed for blank text.
// No request is made.
type EmptyInputError struct{}

func (*EmptyInputError) Error() string {
	return "embedding input is empty"
}

// EmbeddingCallError wraps a provider failure for one text.
type EmbeddingCallError struct {
	Provider string
	Err      error
}

func (e *EmbeddingCallError) Error() string {
	return fmt.Sprintf("%s embedding call failed: %v", e.Provider, e.Err)
}

func (e *EmbeddingCallError) Unwrap() error {
	return e.Err
}

// errEmptyVector is wrapped when a provider answers without values.
var errEmptyVector = errors.New("provider returned an empty vector")

// Client enforces the embedding contract on top of an Embedder:
// blank input fails fast with *EmptyInputError, and every provider failure,
// including an empty answer, becomes an *EmbeddingCallError.
type Client struct {
	embedder Embedder
	provider string
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider names the provider in errors and logs.
func WithProvider(name string) ClientOption {
	return func(c *Client) {
		c.provider = name
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient wraps e.
func NewClient(e Embedder, opts ...ClientOption) *Client {
	c := &Client{embedder: e, provider: "embedding"}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Embed returns the vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &EmptyInputError{}
	}

	c.logger.DebugContext(ctx, "embedding content", "provider", c.provider, "length", len(text))

	v, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingCallError{Provider: c.provider, Err: err}
	}
	if len(v) == 0 {
		return nil, &EmbeddingCallError{Provider: c.provider, Err: errEmptyVector}
	}
	return v, nil
}
