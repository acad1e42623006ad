// Package ollama is an inference backend for a local Ollama-compatible server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/tripwire/pkg/protocol"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultModel   = "llama3.2"
	DefaultTimeout = 60 * time.Second
)

type Client struct {
	baseURL string
	model   string
	http    *retryablehttp.Client
}

func NewClient(baseURL, model string, logger *slog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = DefaultTimeout
	client.Logger = logger.With("module", "ollama")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    client,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Available lists the installed models; any failure means the backend is unavailable.
func (c *Client) Available(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	// A probe must fail fast, so it is never retried.
	resp, err := c.http.HTTPClient.Do(req.Request)
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", protocol.ErrInferenceUnavailable, resp.StatusCode)
	}

	return nil
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", protocol.ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate failed with status %d: %s", resp.StatusCode, decoded.Error)
	}

	return strings.TrimSpace(decoded.Response), nil
}
