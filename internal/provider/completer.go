package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanhubbard/cogload/internal/metrics"
)

// ErrEmptyCompletion is returned when the backend answers without any content
var ErrEmptyCompletion = errors.New("empty completion")

// Options tune a single completion
type Options struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Completer is the advisory backend: system instruction and prompt in, text out.
// Any error is a candidate for the caller's fallback path.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, opts Options) (string, error)
}

// Config selects and configures the advisory backend
type Config struct {
	Type       string        `yaml:"type" json:"type"` // openai, azure, ollama
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`
	APIKey     string        `yaml:"api_key" json:"-"`
	Model      string        `yaml:"model" json:"model"`
	Deployment string        `yaml:"deployment" json:"deployment,omitempty"`
	APIVersion string        `yaml:"api_version" json:"api_version,omitempty"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// Client adapts a Protocol to the Completer interface
type Client struct {
	name     string
	model    string
	protocol Protocol
	metrics  *metrics.Metrics
}

// NewClient wraps an existing protocol
func NewClient(name, model string, protocol Protocol, m *metrics.Metrics) *Client {
	return &Client{name: name, model: model, protocol: protocol, metrics: m}
}

// New builds a Client from configuration
func New(cfg Config, m *metrics.Metrics) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var protocol Protocol
	switch strings.ToLower(cfg.Type) {
	case "openai", "local", "custom", "":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "https://api.openai.com/v1"
		}
		protocol = NewOpenAIProvider(endpoint, cfg.APIKey, timeout)
	case "azure":
		if cfg.Endpoint == "" || cfg.Deployment == "" {
			return nil, fmt.Errorf("azure advisory backend requires endpoint and deployment")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2024-02-15-preview"
		}
		protocol = NewAzureOpenAIProvider(cfg.Endpoint, cfg.APIKey, cfg.Deployment, apiVersion, timeout)
	case "ollama":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:11434"
		}
		protocol = NewOllamaProvider(endpoint, timeout)
	default:
		return nil, fmt.Errorf("unsupported advisory backend type: %s", cfg.Type)
	}

	name := strings.ToLower(cfg.Type)
	if name == "" {
		name = "openai"
	}
	return NewClient(name, cfg.Model, protocol, m), nil
}

// Complete implements Completer
func (c *Client) Complete(ctx context.Context, system, prompt string, opts Options) (string, error) {
	req := &ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	start := time.Now()
	resp, err := c.protocol.CreateChatCompletion(ctx, req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		c.metrics.RecordAdvisoryRequest(c.name, c.model, false, latency)
		return "", fmt.Errorf("advisory request to %s failed: %w", c.name, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.metrics.RecordAdvisoryRequest(c.name, c.model, false, latency)
		return "", ErrEmptyCompletion
	}
	c.metrics.RecordAdvisoryRequest(c.name, c.model, true, latency)
	return resp.Choices[0].Message.Content, nil
}

// Name returns the backend name used in metrics
func (c *Client) Name() string {
	return c.name
}
