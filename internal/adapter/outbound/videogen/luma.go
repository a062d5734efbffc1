// Package videogen provides the outbound client for the asynchronous
// video generation provider.
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamrecorder/server/internal/module/dream"
	"github.com/dreamrecorder/server/internal/shared/config"
	"github.com/dreamrecorder/server/internal/shared/errors"
)

// Client talks to a Dream Machine compatible generation API: submit a
// generation, then poll it by id until a terminal state.
type Client struct {
	httpClient *http.Client
	cfg        *config.GeneratorConfig
	logger     *zap.Logger
}

// NewClient creates a new video generation client.
func NewClient(cfg *config.GeneratorConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateGeneration submits a generation job and returns its id. A request
// carrying a KeyframeID chains the new job off that generation's last frame.
func (c *Client) CreateGeneration(ctx context.Context, req *dream.SubmissionRequest) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", errors.Configuration("video generation API key is not set")
	}

	body := map[string]any{
		"prompt":       req.Prompt,
		"model":        c.cfg.Model,
		"resolution":   c.cfg.Resolution,
		"duration":     c.cfg.Duration,
		"aspect_ratio": c.cfg.AspectRatio,
		"loop":         true,
	}
	if req.KeyframeID != "" {
		body["keyframes"] = map[string]any{
			"frame0": map[string]string{
				"type": "generation",
				"id":   req.KeyframeID,
			},
		}
	}

	data, err := c.doRequest(ctx, "POST", "/generations", body)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return "", errors.Protocol("decode generation response: " + err.Error())
	}
	if created.ID == "" {
		return "", errors.Protocol("generation response missing generation id")
	}
	return created.ID, nil
}

// GetGeneration fetches the current snapshot of a generation job.
func (c *Client) GetGeneration(ctx context.Context, id string) (*dream.GenerationSnapshot, error) {
	data, err := c.doRequest(ctx, "GET", "/generations/"+id, nil)
	if err != nil {
		return nil, err
	}

	var status struct {
		State         string `json:"state"`
		FailureReason string `json:"failure_reason"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, errors.Protocol("decode generation status: " + err.Error())
	}

	return &dream.GenerationSnapshot{
		State:         status.State,
		FailureReason: status.FailureReason,
		VideoURL:      ExtractVideoURL(data),
	}, nil
}

// HealthCheck verifies the credential against the credits endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.Configuration("video generation API key is not set")
	}
	_, err := c.doRequest(ctx, "GET", "/credits", nil)
	return err
}

// ExtractVideoURL pulls the playable asset URL from a raw generation
// response. Providers have shipped the asset under several shapes, checked
// in order: assets.video, assets.url, assets.videos.url, then result.url.
// An empty string means no asset was found.
func ExtractVideoURL(data []byte) string {
	var envelope struct {
		Assets *struct {
			Video  string `json:"video"`
			URL    string `json:"url"`
			Videos *struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"assets"`
		Result *struct {
			URL string `json:"url"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}

	if a := envelope.Assets; a != nil {
		if a.Video != "" {
			return a.Video
		}
		if a.URL != "" {
			return a.URL
		}
		if a.Videos != nil && a.Videos.URL != "" {
			return a.Videos.URL
		}
	}
	if envelope.Result != nil {
		return envelope.Result.URL
	}
	return ""
}

// doRequest performs one API request and returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, body map[string]any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Protocol("marshal request: " + err.Error())
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, errors.Protocol("create request: " + err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.UpstreamTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.UpstreamTransport(err)
	}
	if resp.StatusCode >= 400 {
		return nil, errors.Upstream(resp.StatusCode, string(data))
	}
	return data, nil
}

var _ dream.VideoBackend = (*Client)(nil)
