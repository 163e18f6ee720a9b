package groq_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// client implements the provider interface against Groq's OpenAI-compatible
// chat completions API.
type client struct {
	apiKey     string
	baseURL    string
	maxTokens  int
	retries    int
	httpClient *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model          string                 `json:"model"`
	Messages       []Message              `json:"messages"`
	Temperature    float64                `json:"temperature"`
	MaxTokens      int                    `json:"max_tokens,omitempty"`
	ResponseFormat map[string]interface{} `json:"response_format,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient creates a new Groq client
func NewClient(apiKey, baseURL string, maxTokens int, timeout time.Duration, retries int) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxTokens:  maxTokens,
		retries:    retries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate sends a single-user-message completion request. Recognized options:
// "temperature" (float64) and "json" (bool, requests a JSON object response).
func (c *client) Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error) {
	temperature := 0.3
	if t, ok := options["temperature"].(float64); ok {
		temperature = t
	}

	req := request{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	}
	if jsonMode, ok := options["json"].(bool); ok && jsonMode {
		req.ResponseFormat = map[string]interface{}{"type": "json_object"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		content, retryable, err := c.sendOnce(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		if attempt < tries-1 {
			select {
			case <-time.After(300 * time.Millisecond * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// sendOnce performs a single request. The second return reports whether the
// failure is worth retrying (network error or 5xx/429).
func (c *client) sendOnce(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", retryable, errors.New(resp.Status + ": " + string(b))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}
	return out.Choices[0].Message.Content, false, nil
}
