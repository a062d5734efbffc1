package dream

import (
	"encoding/json"
	"strings"
)

// PromptDelimiter separates the first-stage prompt from the extension
// prompt in two-part enhanced output.
const PromptDelimiter = "*****"

// DefaultExtensionPrompt is the continuation phrase used for the second
// generation stage when no explicit extension prompt is available.
const DefaultExtensionPrompt = "Continue on with this video"

// StructuredPrompt is the parsed form of JSON-encoded enhancement output:
// named cinematic fields plus optional extension fields for two-stage
// generation.
type StructuredPrompt struct {
	Scene    string `json:"scene,omitempty"`
	Camera   string `json:"camera,omitempty"`
	Lighting string `json:"lighting,omitempty"`
	Style    string `json:"style,omitempty"`
	Prompt   string `json:"prompt"`

	ExtendScene    string `json:"extend_scene,omitempty"`
	ExtendCamera   string `json:"extend_camera,omitempty"`
	ExtendLighting string `json:"extend_lighting,omitempty"`
	ExtendStyle    string `json:"extend_style,omitempty"`
	ExtendPrompt   string `json:"extend_prompt,omitempty"`
}

// PromptPayload is the tagged union produced by ParsePrompt: either a
// structured prompt or opaque plain text. Exactly one arm is set.
type PromptPayload struct {
	Structured *StructuredPrompt
	Plain      string
}

// IsStructured reports whether the payload parsed as a structured prompt.
func (p PromptPayload) IsStructured() bool {
	return p.Structured != nil
}

// Prompts returns the first-stage prompt and the extension prompt carried
// by the payload. For plain payloads the extension is empty; delimiter
// splitting of plain text is the orchestrator's concern.
func (p PromptPayload) Prompts() (initial, extension string) {
	if p.Structured != nil {
		return p.Structured.Prompt, p.Structured.ExtendPrompt
	}
	return p.Plain, ""
}

// ParsePrompt attempts a strict JSON parse of enhancement output. The text
// is treated as structured only when it parses as a JSON object with a
// non-empty prompt field; anything else is returned verbatim as plain
// text. Parsing is all-or-nothing, never field-by-field recovery, and
// never fails.
func ParsePrompt(text string) PromptPayload {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return PromptPayload{Plain: text}
	}

	var structured StructuredPrompt
	if err := json.Unmarshal([]byte(trimmed), &structured); err != nil {
		return PromptPayload{Plain: text}
	}
	if strings.TrimSpace(structured.Prompt) == "" {
		return PromptPayload{Plain: text}
	}
	return PromptPayload{Structured: &structured}
}

// splitPrompt resolves the first-stage and extension prompts for one
// invocation. In extend mode a delimiter inside the prompt overrides any
// explicitly supplied extension; without a delimiter the explicit
// extension is used, defaulting to the fixed continuation phrase.
func splitPrompt(prompt, explicitExtension string, extendMode bool) (initial, extension string) {
	if !extendMode {
		return prompt, ""
	}
	if before, after, found := strings.Cut(prompt, PromptDelimiter); found {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	if explicitExtension != "" {
		return prompt, explicitExtension
	}
	return prompt, DefaultExtensionPrompt
}
