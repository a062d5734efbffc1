package dream

// RecordRequest asks for the full pipeline: enhance the transcript, then
// generate the video.
type RecordRequest struct {
	Transcript string `json:"transcript" binding:"required"`
	Extend     bool   `json:"extend"`
}

// EnhanceRequest asks for prompt enhancement only.
type EnhanceRequest struct {
	Text   string `json:"text" binding:"required"`
	Extend bool   `json:"extend"`
}

// EnhanceResponse carries the enhanced prompt. Structured is set when the
// enhancement output parsed as a structured prompt.
type EnhanceResponse struct {
	Prompt     string            `json:"prompt"`
	Structured *StructuredPrompt `json:"structured,omitempty"`
}

// GenerateRequest asks for video generation from an already-final prompt,
// bypassing enhancement.
type GenerateRequest struct {
	Prompt          string `json:"prompt" binding:"required"`
	Extend          bool   `json:"extend"`
	ExtensionPrompt string `json:"extension_prompt"`
}

// HealthResponse reports upstream credential checks.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
