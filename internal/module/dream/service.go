package dream

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamrecorder/server/internal/shared/errors"
	"github.com/dreamrecorder/server/internal/utils/metrics"
)

// Result is the outcome of one full dream recording pipeline run.
type Result struct {
	Transcript      string `json:"transcript"`
	Prompt          string `json:"prompt"`
	ExtensionPrompt string `json:"extension_prompt,omitempty"`
	VideoURL        string `json:"video_url"`
	GenerationID    string `json:"generation_id"`
	// Enhanced reports whether the generation prompt came from the
	// enhancement stage; false means the raw transcript was used.
	Enhanced bool `json:"enhanced"`
}

// Service runs the dream pipeline: enhance the transcript, normalize the
// enhanced payload, then generate and poll the video.
type Service struct {
	enhancer     *Enhancer
	orchestrator *Orchestrator
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// ServiceConfig holds pipeline service construction parameters.
type ServiceConfig struct {
	Enhancer     *Enhancer
	Orchestrator *Orchestrator
	// Metrics is optional; nil disables pipeline metrics.
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewService creates a new dream pipeline service.
func NewService(cfg *ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		enhancer:     cfg.Enhancer,
		orchestrator: cfg.Orchestrator,
		metrics:      cfg.Metrics,
		logger:       logger,
	}
}

// Record takes a finished dream transcript and drives it to a playable
// video. Enhancement failures are not fatal: the raw transcript becomes
// the generation prompt and the run continues. Empty transcripts and
// generation failures abort.
func (s *Service) Record(ctx context.Context, transcript string, extendMode bool) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.Validation("dream transcript is empty")
	}

	prompt, enhanced := s.enhance(ctx, transcript, extendMode)

	initial, extension := ParsePrompt(prompt).Prompts()

	video, err := s.orchestrator.Generate(ctx, initial, extendMode, extension)
	if err != nil {
		return nil, err
	}

	return &Result{
		Transcript:      transcript,
		Prompt:          video.Prompt,
		ExtensionPrompt: video.ExtensionPrompt,
		VideoURL:        video.VideoURL,
		GenerationID:    video.GenerationID,
		Enhanced:        enhanced,
	}, nil
}

// enhance returns the generation prompt for the transcript and whether
// enhancement produced it. Any enhancement error downgrades to the raw
// transcript.
func (s *Service) enhance(ctx context.Context, transcript string, extendMode bool) (string, bool) {
	prompt, err := s.enhancer.Enhance(ctx, transcript, extendMode)
	if err != nil {
		s.logger.Warn("prompt enhancement failed, using raw transcript",
			zap.String("kind", string(errors.KindOf(err))),
			zap.Error(err))
		s.observeEnhancement("fallback")
		return transcript, false
	}
	s.observeEnhancement("completed")
	return prompt, true
}

func (s *Service) observeEnhancement(outcome string) {
	if s.metrics != nil {
		s.metrics.EnhancementsTotal.WithLabelValues(outcome).Inc()
	}
}
