package dream

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dreamrecorder/server/internal/shared/errors"
	"github.com/dreamrecorder/server/internal/utils/metrics"
)

const (
	// progressBase and progressSpan shape the attempt-indexed baseline:
	// base + attempt/max * span, clamped per observed state.
	progressBase = 20
	progressSpan = 70

	// progressQueuedCap caps progress while the job sits in the queue.
	progressQueuedCap = 40
	// progressProcessingFloor floors progress once rendering has started.
	progressProcessingFloor = 50
	// progressExtracting is reported on terminal success until the asset
	// URL has been extracted.
	progressExtracting = 95

	// etaCeilingSeconds and etaFloorSeconds bound the linear-decay time
	// estimate. This is a heuristic, not a measurement.
	etaCeilingSeconds = 120
	etaFloorSeconds   = 10

	defaultProgressEvery = 5
)

// Orchestrator drives a video generation job from submission through a
// bounded poll loop to a playable asset URL, with an optional second
// extension stage chained off the first job's last frame.
type Orchestrator struct {
	backend  VideoBackend
	bus      *Bus
	settings GenerationSettings
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// sleep suspends between poll attempts; injected in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// OrchestratorConfig holds orchestrator construction parameters.
type OrchestratorConfig struct {
	Backend  VideoBackend
	Bus      *Bus
	Settings GenerationSettings
	// Metrics is optional; nil disables pipeline metrics.
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewOrchestrator creates a new generation orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := cfg.Settings
	if settings.ProgressEvery <= 0 {
		settings.ProgressEvery = defaultProgressEvery
	}
	return &Orchestrator{
		backend:  cfg.Backend,
		bus:      cfg.Bus,
		settings: settings,
		metrics:  cfg.Metrics,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Generate submits the prompt, polls the job to completion and returns
// the playable video. In extend mode a second stage is chained off the
// first job's last frame; the returned URL and id come from the extension
// stage when present. Each call owns its own job state; concurrent calls
// proceed independently.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, extendMode bool, extensionPrompt string) (*GeneratedVideo, error) {
	start := time.Now()

	if strings.TrimSpace(prompt) == "" {
		err := errors.Validation("generation prompt is empty")
		o.publishError(err)
		return nil, err
	}

	initial, extension := splitPrompt(prompt, extensionPrompt, extendMode)

	o.bus.Publish(ProgressEvent{
		Status:   StatusStarting,
		Message:  "Starting video generation",
		Progress: 10,
	})

	job := &generationJob{state: StatusStarting}
	id, err := o.backend.CreateGeneration(ctx, &SubmissionRequest{Prompt: initial})
	if err != nil {
		return nil, o.fail(err, start)
	}
	job.id = id
	job.state = StatusQueued
	o.bus.Publish(ProgressEvent{
		Status:   StatusQueued,
		Message:  "Dream submitted to video generator",
		Progress: progressBase,
	})

	snapshot, err := o.poll(ctx, job)
	if err != nil {
		return nil, o.fail(err, start)
	}

	finalID := job.id
	if extendMode {
		o.bus.Publish(ProgressEvent{
			Status:   StatusGenerating,
			Message:  "Extending video from last frame",
			Progress: progressProcessingFloor,
		})

		extID, err := o.backend.CreateGeneration(ctx, &SubmissionRequest{
			Prompt:     extension,
			KeyframeID: job.id,
		})
		if err != nil {
			return nil, o.fail(err, start)
		}

		extJob := &generationJob{id: extID, state: StatusQueued}
		snapshot, err = o.poll(ctx, extJob)
		if err != nil {
			return nil, o.fail(err, start)
		}
		finalID = extID
	}

	if snapshot.VideoURL == "" {
		return nil, o.fail(errors.Protocol("generation completed but no asset found"), start)
	}

	o.bus.Publish(ProgressEvent{
		Status:   StatusCompleted,
		Message:  "Video ready",
		Progress: 100,
	})
	if o.metrics != nil {
		o.metrics.ObserveGeneration("completed", time.Since(start))
	}
	o.logger.Info("video generation complete",
		zap.String("generation_id", finalID),
		zap.Bool("extended", extendMode),
		zap.Duration("elapsed", time.Since(start)))

	return &GeneratedVideo{
		VideoURL:        snapshot.VideoURL,
		GenerationID:    finalID,
		Prompt:          initial,
		ExtensionPrompt: extension,
	}, nil
}

// poll checks the job state until terminal success, terminal failure, or
// budget exhaustion. Transient fetch failures are retried silently; only
// the final allowed attempt's failure is surfaced.
func (o *Orchestrator) poll(ctx context.Context, job *generationJob) (*GenerationSnapshot, error) {
	maxAttempts := o.settings.MaxPollAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		job.attempts = attempt

		snapshot, err := o.backend.GetGeneration(ctx, job.id)
		switch {
		case err != nil:
			if attempt == maxAttempts {
				o.observeAttempts(attempt)
				return nil, err
			}
			o.logger.Debug("transient poll failure",
				zap.String("generation_id", job.id),
				zap.Int("attempt", attempt),
				zap.Error(err))

		case snapshot.Succeeded():
			job.state = StatusCompleted
			o.bus.Publish(ProgressEvent{
				Status:      StatusGenerating,
				Message:     "Generation complete, extracting result",
				Progress:    progressExtracting,
				Attempt:     attempt,
				MaxAttempts: maxAttempts,
			})
			o.observeAttempts(attempt)
			return snapshot, nil

		case snapshot.Failed():
			job.state = StatusError
			o.observeAttempts(attempt)
			return nil, errors.GenerationFailed(snapshot.FailureReason)

		default:
			o.publishPollProgress(job, snapshot, attempt)
		}

		if attempt == maxAttempts {
			break
		}
		if err := o.sleep(ctx, o.settings.PollInterval); err != nil {
			return nil, err
		}
	}

	o.observeAttempts(maxAttempts)
	return nil, errors.Timeout(maxAttempts)
}

/// publishPollProgress emits a throttled per-attempt progress event: on the
// first attempt, on every Nth attempt, and on any state transition.
func (o *Orchestrator) publishPollProgress(job *generationJob, snapshot *GenerationSnapshot, attempt int) {
	transitioned := snapshot.State != job.lastRawState
	job.lastRawState = snapshot.State

	if attempt != 1 && !transitioned && attempt%o.settings.ProgressEvery != 0 {
		return
	}

	status := StatusGenerating
	if snapshot.State == "queued" {
		status = StatusQueued
	}
	job.state = status

	o.bus.Publish(ProgressEvent{
		Status:      status,
		Message:     "Generation in progress (" + snapshot.State + ")",
		Progress:    pollProgress(attempt, o.settings.MaxPollAttempts, snapshot.State),
		Attempt:     attempt,
		MaxAttempts: o.settings.MaxPollAttempts,
		ETASeconds:  o.estimateETA(attempt),
	})
}

// pollProgress computes the deterministic attempt-indexed progress value,
// clamped by the observed upstream state.
func pollProgress(attempt, maxAttempts int, state string) int {
	p := progressBase + int(float64(attempt)/float64(maxAttempts)*progressSpan)
	switch state {
	case "queued":
		if p > progressQueuedCap {
			p = progressQueuedCap
		}
	default:
		if p < progressProcessingFloor {
			p = progressProcessingFloor
		}
	}
	return p
}

// estimateETA returns the linear-decay seconds-remaining heuristic.
func (o *Orchestrator) estimateETA(attempt int) int {
	eta := etaCeilingSeconds - attempt*int(o.settings.PollInterval.Seconds())
	if eta < etaFloorSeconds {
		eta = etaFloorSeconds
	}
	return eta
}

func (o *Orchestrator) fail(err error, start time.Time) error {
	o.publishError(err)
	if o.metrics != nil {
		outcome := string(errors.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		o.metrics.ObserveGeneration(outcome, time.Since(start))
	}
	o.logger.Warn("video generation failed",
		zap.String("kind", string(errors.KindOf(err))),
		zap.Error(err))
	return err
}

func (o *Orchestrator) publishError(err error) {
	o.bus.Publish(ProgressEvent{
		Status:  StatusError,
		Message: err.Error(),
	})
}

func (o *Orchestrator) observeAttempts(attempts int) {
	if o.metrics != nil {
		o.metrics.PollAttempts.Observe(float64(attempts))
	}
}

// sleepContext suspends for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
