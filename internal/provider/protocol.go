package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Protocol is a chat-completions transport
type Protocol interface {
	// CreateChatCompletion sends a chat completion request
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// ChatMessage represents a message in the chat
type ChatMessage struct {
	Role    string `json:"role"`    // system, user, assistant
	Content string `json:"content"` // message content
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// Choice is one completion alternative
type Choice struct {
	Index   int         `json:"index"`
	Message ChatMessage `json:"message"`
	Finish  string      `json:"finish_reason"`
}

// ChatCompletionResponse represents a chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIProvider speaks the OpenAI chat completions API. Azure OpenAI
// deployments use the same wire format with a different URL and auth header.
type OpenAIProvider struct {
	completionsURL string
	authHeader     string
	authValue      string
	client         *http.Client
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint such as https://api.openai.com/v1
func NewOpenAIProvider(endpoint, apiKey string, timeout time.Duration) *OpenAIProvider {
	p := &OpenAIProvider{
		completionsURL: fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(endpoint, "/")),
		client:         &http.Client{Timeout: timeout},
	}
	if apiKey != "" {
		p.authHeader = "Authorization"
		p.authValue = "Bearer " + apiKey
	}
	return p
}

// NewAzureOpenAIProvider creates a provider for an Azure OpenAI deployment
func NewAzureOpenAIProvider(endpoint, apiKey, deployment, apiVersion string, timeout time.Duration) *OpenAIProvider {
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(endpoint, "/"), url.PathEscape(deployment), url.QueryEscape(apiVersion))
	return &OpenAIProvider{
		completionsURL: u,
		authHeader:     "api-key",
		authValue:      apiKey,
		client:         &http.Client{Timeout: timeout},
	}
}

// CreateChatCompletion sends a chat completion request
func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	headers := map[string]string{}
	if p.authHeader != "" {
		headers[p.authHeader] = p.authValue
	}

	var completionResp ChatCompletionResponse
	if err := postJSON(ctx, p.client, p.completionsURL, headers, req, &completionResp); err != nil {
		return nil, err
	}
	return &completionResp, nil
}

// postJSON sends body as JSON and decodes a 200 response into out
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
