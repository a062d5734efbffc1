package dream

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamrecorder/server/internal/shared/errors"
)

// Enhancer turns a raw dream description into a cinematic generation
// prompt via a chat-completion endpoint.
type Enhancer struct {
	client             CompletionClient
	bus                *Bus
	systemPrompt       string
	systemPromptExtend string
	logger             *zap.Logger
}

// EnhancerConfig holds enhancer construction parameters.
type EnhancerConfig struct {
	Client CompletionClient
	Bus    *Bus
	// SystemPrompt is the instruction for single-stage prompts.
	SystemPrompt string
	// SystemPromptExtend is the instruction for two-part delimited prompts.
	SystemPromptExtend string
	Logger             *zap.Logger
}

// NewEnhancer creates a new prompt enhancer.
func NewEnhancer(cfg *EnhancerConfig) *Enhancer {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{
		client:             cfg.Client,
		bus:                cfg.Bus,
		systemPrompt:       cfg.SystemPrompt,
		systemPromptExtend: cfg.SystemPromptExtend,
		logger:             logger,
	}
}

// Enhance sends the raw text to the completion endpoint with the system
// instruction selected by extendMode and returns the trimmed completion
// verbatim. The result may itself be JSON-encoded; normalization is the
// caller's concern. Empty input fails without a network call. All failure
// paths emit an error progress event and return a typed error; callers may
// fall back to the raw text and continue.
func (e *Enhancer) Enhance(ctx context.Context, rawText string, extendMode bool) (string, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		err := errors.Validation("dream description is empty")
		e.publishError(err)
		return "", err
	}

	e.bus.Publish(ProgressEvent{
		Status:   StatusEnhancing,
		Message:  "Enhancing dream description",
		Progress: 10,
	})

	system := e.systemPrompt
	if extendMode {
		system = e.systemPromptExtend
	}

	completion, err := e.client.Complete(ctx, &CompletionRequest{
		System: system,
		User:   text,
	})
	if err != nil {
		e.logger.Warn("prompt enhancement failed",
			zap.String("kind", string(errors.KindOf(err))),
			zap.Error(err))
		e.publishError(err)
		return "", err
	}

	prompt := strings.TrimSpace(completion)
	if prompt == "" {
		err := errors.EmptyResponse("completion contained no content")
		e.publishError(err)
		return "", err
	}

	e.bus.Publish(ProgressEvent{
		Status:   StatusCompleted,
		Message:  "Prompt enhancement complete",
		Progress: 100,
	})
	return prompt, nil
}

func (e *Enhancer) publishError(err error) {
	e.bus.Publish(ProgressEvent{
		Status:  StatusError,
		Message: err.Error(),
	})
}
