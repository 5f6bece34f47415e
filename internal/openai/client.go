// Package openai implements a minimal client for OpenAI-compatible embedding
// and chat completion APIs. Only the subset of the API the Q&A pipeline needs
// is modeled.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client communicates with an OpenAI-compatible API.
type Client struct {
	apiKey     string
	baseURL    string
	embedModel string
	chatModel  string
	httpClient *http.Client
}

// NewClient creates a Client with the given API key and model identifiers.
func NewClient(apiKey, embedModel, chatModel string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		embedModel: embedModel,
		chatModel:  chatModel,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for
// testing, or for OpenAI-compatible servers such as a local gateway).
func NewClientWithBaseURL(apiKey, embedModel, chatModel, baseURL string) *Client {
	c := NewClient(apiKey, embedModel, chatModel)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// retryableError is returned on HTTP 429 and 5xx so the retry loop can tell
// transient provider failures from permanent ones.
type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d", e.status)
}

func isRetryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || vecs[0] == nil {
		return nil, fmt.Errorf("provider returned no embedding")
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in a single API request. The returned slice
// has the same length and order as texts; entries the provider did not
// return an embedding for are nil rather than failing the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingsRequest{Model: c.embedModel, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embeddings request: %w", err)
	}

	respBody, err := c.post(ctx, "/embeddings", body)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}

	var resp embeddingsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding embeddings response: %w", err)
	}

	// The API associates each embedding with its input index; missing or
	// out-of-range entries leave a nil marker for the caller to skip.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || len(d.Embedding) == 0 {
			continue
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat sends a system + user prompt pair and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   1200,
		Temperature: 0.3,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	respBody, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("provider returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// post sends a JSON POST to the given path, retrying transient failures
// (429 and 5xx) with exponential backoff.
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := range maxRetries {
		respBody, err := c.doPost(ctx, path, body)
		if err == nil {
			return respBody, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("giving up after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) doPost(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &retryableError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return io.ReadAll(resp.Body)
}
