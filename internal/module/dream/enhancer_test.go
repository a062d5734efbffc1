package dream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamrecorder/server/internal/shared/errors"
)

// mockCompletionClient is a scripted completion client.
type mockCompletionClient struct {
	completion string
	err        error
	calls      int
	lastReq    *CompletionRequest
}

func (m *mockCompletionClient) Complete(_ context.Context, req *CompletionRequest) (string, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	return m.completion, nil
}

func newTestEnhancer(client CompletionClient, bus *Bus) *Enhancer {
	return NewEnhancer(&EnhancerConfig{
		Client:             client,
		Bus:                bus,
		SystemPrompt:       "single",
		SystemPromptExtend: "double",
	})
}

func collectEvents(bus *Bus) *[]ProgressEvent {
	var events []ProgressEvent
	bus.Subscribe(func(e ProgressEvent) { events = append(events, e) })
	return &events
}

func TestEnhancer_Success(t *testing.T) {
	client := &mockCompletionClient{completion: "  A soaring flight over snowy peaks  "}
	bus := NewBus(nil)
	events := collectEvents(bus)

	prompt, err := newTestEnhancer(client, bus).Enhance(context.Background(), "I was flying over mountains", false)
	require.NoError(t, err)
	assert.Equal(t, "A soaring flight over snowy peaks", prompt)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "single", client.lastReq.System)
	assert.Equal(t, "I was flying over mountains", client.lastReq.User)

	require.Len(t, *events, 2)
	assert.Equal(t, StatusEnhancing, (*events)[0].Status)
	assert.Equal(t, StatusCompleted, (*events)[1].Status)
}

func TestEnhancer_ExtendModeSelectsExtendTemplate(t *testing.T) {
	client := &mockCompletionClient{completion: "part one ***** part two"}
	bus := NewBus(nil)

	_, err := newTestEnhancer(client, bus).Enhance(context.Background(), "a dream", true)
	require.NoError(t, err)
	assert.Equal(t, "double", client.lastReq.System)
}

func TestEnhancer_EmptyInput(t *testing.T) {
	client := &mockCompletionClient{completion: "unused"}
	bus := NewBus(nil)
	events := collectEvents(bus)

	_, err := newTestEnhancer(client, bus).Enhance(context.Background(), "   \n\t ", false)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Equal(t, 0, client.calls, "no network call for empty input")

	require.Len(t, *events, 1)
	assert.Equal(t, StatusError, (*events)[0].Status)
	assert.NotEmpty(t, (*events)[0].Message)
}

func TestEnhancer_UpstreamError(t *testing.T) {
	client := &mockCompletionClient{err: errors.Upstream(500, "provider exploded")}
	bus := NewBus(nil)
	events := collectEvents(bus)

	_, err := newTestEnhancer(client, bus).Enhance(context.Background(), "a dream", false)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUpstream))
	assert.Equal(t, 1, client.calls)

	last := (*events)[len(*events)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.Contains(t, last.Message, "500")
}

func TestEnhancer_EmptyCompletion(t *testing.T) {
	client := &mockCompletionClient{completion: "   "}
	bus := NewBus(nil)

	_, err := newTestEnhancer(client, bus).Enhance(context.Background(), "a dream", false)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindEmptyResponse))
}

func TestEnhancer_ConfigurationError(t *testing.T) {
	client := &mockCompletionClient{err: errors.Configuration("missing API key")}
	bus := NewBus(nil)

	_, err := newTestEnhancer(client, bus).Enhance(context.Background(), "a dream", false)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfiguration))
}
