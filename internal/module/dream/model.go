// Package dream implements the dream-to-video generation pipeline: prompt
// enhancement, video generation orchestration with bounded polling, and
// progress notification.
package dream

import (
	"context"
	"time"
)

// Status represents a pipeline lifecycle stage. A single invocation moves
// idle → enhancing → starting → queued → generating → completed, or to
// error from any stage. Completed and error are terminal.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusEnhancing  Status = "enhancing"
	StatusStarting   Status = "starting"
	StatusQueued     Status = "queued"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether the status ends an invocation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ProgressEvent is an immutable snapshot broadcast to subscribers. Events
// carry no identity; listeners consume and discard them.
type ProgressEvent struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	// Progress is a 0-100 percentage, present when it can be estimated.
	Progress int `json:"progress,omitempty"`
	// Attempt and MaxAttempts describe the poll loop position.
	Attempt     int `json:"attempt,omitempty"`
	MaxAttempts int `json:"max_attempts,omitempty"`
	// ETASeconds is a linear-decay estimate, not a measurement.
	ETASeconds int `json:"eta_seconds,omitempty"`
}

// GenerationSettings is the resolved configuration snapshot consumed by a
// single orchestrator invocation.
type GenerationSettings struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	// ProgressEvery throttles per-attempt progress events: events are
	// emitted on the first attempt, on every Nth attempt, and on any
	// state transition.
	ProgressEvery int
}

// generationJob is the mutable state owned by one orchestrator invocation.
// It is never shared across invocations and is discarded when polling
// terminates.
type generationJob struct {
	id           string
	state        Status
	attempts     int
	lastRawState string
}

// GeneratedVideo is the final output of a successful generation.
type GeneratedVideo struct {
	VideoURL        string `json:"video_url"`
	GenerationID    string `json:"generation_id"`
	Prompt          string `json:"prompt"`
	ExtensionPrompt string `json:"extension_prompt,omitempty"`
}

// CompletionRequest is a chat-completion exchange: one system instruction
// and one user message.
type CompletionRequest struct {
	System string
	User   string
}

// CompletionClient is the outbound port for the prompt completion endpoint.
type CompletionClient interface {
	// Complete returns the completion text for the request. An empty
	// completion is reported by the adapter as an empty-response error.
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}

// SubmissionRequest describes one generation job submission.
type SubmissionRequest struct {
	Prompt string
	// KeyframeID chains this job off a prior generation's last frame.
	// Empty for a first-stage submission.
	KeyframeID string
}

// GenerationSnapshot is the normalized view of one poll response.
type GenerationSnapshot struct {
	// State is the raw upstream status string (queued, processing,
	// generating, completed, succeeded, failed, error, ...).
	State string
	// FailureReason is set when the upstream reports a terminal failure.
	FailureReason string
	// VideoURL is the extracted asset URL, empty if no candidate field
	// was present.
	VideoURL string
}

// Succeeded reports whether the snapshot carries a terminal success state.
func (s *GenerationSnapshot) Succeeded() bool {
	return s.State == "completed" || s.State == "succeeded"
}

// Failed reports whether the snapshot carries a terminal failure state.
func (s *GenerationSnapshot) Failed() bool {
	return s.State == "failed" || s.State == "error"
}

// VideoBackend is the outbound port for the video generation service.
type VideoBackend interface {
	// CreateGeneration submits a job and returns its opaque identifier.
	CreateGeneration(ctx context.Context, req *SubmissionRequest) (string, error)
	// GetGeneration fetches the current state of a job.
	GetGeneration(ctx context.Context, id string) (*GenerationSnapshot, error)
}
