package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider implements Protocol for Ollama's native chat API.
// See: https://github.com/ollama/ollama/blob/main/docs/api.md
type OllamaProvider struct {
	endpoint string
	client   *http.Client
}

func NewOllamaProvider(endpoint string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Model   string      `json:"model"`
	Message ChatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (p *OllamaProvider) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	ollamaReq := ollamaChatRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	var ollamaResp ollamaChatResponse
	if err := postJSON(ctx, p.client, fmt.Sprintf("%s/api/chat", p.endpoint), nil, ollamaReq, &ollamaResp); err != nil {
		return nil, err
	}

	return &ChatCompletionResponse{
		Model: ollamaResp.Model,
		Choices: []Choice{{
			Index:   0,
			Message: ollamaResp.Message,
			Finish:  "stop",
		}},
	}, nil
}
