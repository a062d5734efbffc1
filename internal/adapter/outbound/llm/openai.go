// Package llm provides the outbound chat-completion client used by the
// prompt enhancement stage.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dreamrecorder/server/internal/module/dream"
	"github.com/dreamrecorder/server/internal/shared/config"
	"github.com/dreamrecorder/server/internal/shared/errors"
)

// Client calls an OpenAI-compatible chat completion endpoint. Requests run
// behind a circuit breaker so a failing upstream degrades to the pipeline's
// raw-text fallback instead of hammering the provider.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
	cfg        *config.EnhancerConfig
	logger     *zap.Logger
}

// NewClient creates a new chat completion client.
func NewClient(cfg *config.EnhancerConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.CircuitTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		breaker:    gobreaker.NewCircuitBreaker[string](settings),
		cfg:        cfg,
		logger:     logger,
	}
}

// Complete performs one non-streaming chat completion and returns the first
// choice's message content.
func (c *Client) Complete(ctx context.Context, req *dream.CompletionRequest) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.Configuration("chat completion API key is not set")
	}

	content, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", errors.UpstreamTransport(err)
		}
		return "", err
	}
	return content, nil
}

func (c *Client) complete(ctx context.Context, req *dream.CompletionRequest) (string, error) {
	body := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.User},
		},
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", errors.Protocol("marshal completion request: " + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", errors.Protocol("create completion request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.UpstreamTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", errors.Upstream(resp.StatusCode, string(respBody))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", errors.Protocol("decode completion response: " + err.Error())
	}
	if len(completion.Choices) == 0 {
		return "", errors.EmptyResponse("completion response has no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// HealthCheck verifies the credential with a models list request.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.Configuration("chat completion API key is not set")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return errors.Protocol("create health check request: " + err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.UpstreamTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.Upstream(resp.StatusCode, string(respBody))
	}
	return nil
}

var _ dream.CompletionClient = (*Client)(nil)
