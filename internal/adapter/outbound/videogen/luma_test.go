package videogen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamrecorder/server/internal/module/dream"
	"github.com/dreamrecorder/server/internal/shared/config"
	"github.com/dreamrecorder/server/internal/shared/errors"
)

func testConfig(baseURL string) *config.GeneratorConfig {
	return &config.GeneratorConfig{
		APIKey:          "luma-key",
		BaseURL:         baseURL,
		Model:           "ray-2",
		Resolution:      "540p",
		Duration:        "5s",
		AspectRatio:     "16:9",
		PollInterval:    5 * time.Second,
		MaxPollAttempts: 100,
		RequestTimeout:  5 * time.Second,
	}
}

func TestCreateGeneration(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generations", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"gen-abc","state":"queued"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	id, err := client.CreateGeneration(context.Background(), &dream.SubmissionRequest{
		Prompt: "a whale drifting through clouds",
	})
	require.NoError(t, err)
	assert.Equal(t, "gen-abc", id)

	assert.Equal(t, "Bearer luma-key", gotAuth)
	assert.Equal(t, "a whale drifting through clouds", gotBody["prompt"])
	assert.Equal(t, "ray-2", gotBody["model"])
	assert.Equal(t, "540p", gotBody["resolution"])
	assert.Equal(t, "5s", gotBody["duration"])
	assert.Equal(t, "16:9", gotBody["aspect_ratio"])
	assert.Equal(t, true, gotBody["loop"])
	assert.NotContains(t, gotBody, "keyframes")
}

func TestCreateGeneration_WithKeyframe(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"id":"gen-ext"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	id, err := client.CreateGeneration(context.Background(), &dream.SubmissionRequest{
		Prompt:     "the whale dives",
		KeyframeID: "gen-abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "gen-ext", id)

	keyframes := gotBody["keyframes"].(map[string]any)
	frame0 := keyframes["frame0"].(map[string]any)
	assert.Equal(t, "generation", frame0["type"])
	assert.Equal(t, "gen-abc", frame0["id"])
}

func TestCreateGeneration_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":"queued"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	_, err := client.CreateGeneration(context.Background(), &dream.SubmissionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindProtocol))
	assert.Contains(t, err.Error(), "missing generation id")
}

func TestCreateGeneration_MissingAPIKey(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.APIKey = ""
	client := NewClient(cfg, nil)

	_, err := client.CreateGeneration(context.Background(), &dream.SubmissionRequest{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfiguration))
}

func TestCreateGeneration_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"prompt rejected"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	_, err := client.CreateGeneration(context.Background(), &dream.SubmissionRequest{Prompt: "x"})
	require.Error(t, err)

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.KindUpstream, appErr.Kind)
	assert.Equal(t, http.StatusBadRequest, appErr.UpstreamStatus)
	assert.Contains(t, appErr.Message, "prompt rejected")
}

func TestGetGeneration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/generations/gen-abc", r.URL.Path)
		w.Write([]byte(`{"id":"gen-abc","state":"completed","assets":{"video":"https://x/v.mp4"}}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	snapshot, err := client.GetGeneration(context.Background(), "gen-abc")
	require.NoError(t, err)

	assert.Equal(t, "completed", snapshot.State)
	assert.True(t, snapshot.Succeeded())
	assert.Equal(t, "https://x/v.mp4", snapshot.VideoURL)
}

func TestGetGeneration_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"state":"failed","failure_reason":"content policy violation"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	snapshot, err := client.GetGeneration(context.Background(), "gen-abc")
	require.NoError(t, err)

	assert.True(t, snapshot.Failed())
	assert.Equal(t, "content policy violation", snapshot.FailureReason)
	assert.Empty(t, snapshot.VideoURL)
}

func TestExtractVideoURL_Precedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "assets.video wins over everything",
			body: `{"assets":{"video":"https://x/a.mp4","url":"https://x/b.mp4","videos":{"url":"https://x/c.mp4"}},"result":{"url":"https://x/d.mp4"}}`,
			want: "https://x/a.mp4",
		},
		{
			name: "assets.url when video absent",
			body: `{"assets":{"url":"https://x/b.mp4","videos":{"url":"https://x/c.mp4"}},"result":{"url":"https://x/d.mp4"}}`,
			want: "https://x/b.mp4",
		},
		{
			name: "assets.videos.url as third choice",
			body: `{"assets":{"videos":{"url":"https://x/c.mp4"}},"result":{"url":"https://x/d.mp4"}}`,
			want: "https://x/c.mp4",
		},
		{
			name: "result.url as last resort",
			body: `{"assets":{},"result":{"url":"https://x/d.mp4"}}`,
			want: "https://x/d.mp4",
		},
		{
			name: "no asset anywhere",
			body: `{"state":"completed","assets":{}}`,
			want: "",
		},
		{
			name: "malformed payload",
			body: `not json`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVideoURL([]byte(tt.body)))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/credits", r.URL.Path)
		assert.Equal(t, "Bearer luma-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"credit_balance":1000}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestHealthCheck_BadCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUpstream))
}
