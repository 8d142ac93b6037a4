package events

// LLMInferenceData is the model-side part of EventMetadata.
type LLMInferenceData struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature,omitempty"`
	// PromptTokens is the cl100k_base estimate of the prompt sent to the model
	PromptTokens int    `json:"prompt_tokens,omitempty" yaml:"prompt_tokens,omitempty" mapstructure:"prompt_tokens,omitempty"`
	DurationMs   *int64 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty" mapstructure:"duration_ms,omitempty"`
}
