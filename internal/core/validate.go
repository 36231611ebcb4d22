package core

import (
	"fmt"
	"strings"
)

const (
	maxStopSequences      = 4
	maxStopSequenceLength = 64
)

// Validate checks the request against the OpenAI-compatible parameter ranges
// and the Gemini thinking rules. The returned error is a non-retryable client error.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return NewValidationError("model", "is required")
	}
	if len(r.Messages) == 0 {
		return NewValidationError("messages", "at least one message is required")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return NewValidationError("temperature", fmt.Sprintf("must be between 0.0 and 2.0, got %v", *r.Temperature))
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return NewValidationError("top_p", fmt.Sprintf("must be between 0.0 and 1.0, got %v", *r.TopP))
	}
	if r.FrequencyPenalty != nil && (*r.FrequencyPenalty < -2 || *r.FrequencyPenalty > 2) {
		return NewValidationError("frequency_penalty", fmt.Sprintf("must be between -2.0 and 2.0, got %v", *r.FrequencyPenalty))
	}
	if r.PresencePenalty != nil && (*r.PresencePenalty < -2 || *r.PresencePenalty > 2) {
		return NewValidationError("presence_penalty", fmt.Sprintf("must be between -2.0 and 2.0, got %v", *r.PresencePenalty))
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return NewValidationError("max_tokens", "must be greater than 0")
	}
	if r.TopLogprobs != nil && (*r.TopLogprobs < 0 || *r.TopLogprobs > 20) {
		return NewValidationError("top_logprobs", fmt.Sprintf("must be between 0 and 20, got %d", *r.TopLogprobs))
	}
	if r.N != nil && *r.N <= 0 {
		return NewValidationError("n", "must be greater than 0")
	}
	if len(r.Stop) > maxStopSequences {
		return NewValidationError("stop", fmt.Sprintf("cannot have more than %d stop sequences", maxStopSequences))
	}
	for _, seq := range r.Stop {
		if seq == "" {
			return NewValidationError("stop", "stop sequences cannot be empty")
		}
		if len(seq) > maxStopSequenceLength {
			return NewValidationError("stop", fmt.Sprintf("stop sequences cannot be longer than %d characters", maxStopSequenceLength))
		}
	}
	if r.ThinkingConfig != nil {
		return r.validateThinking(r.ThinkingConfig)
	}
	return nil
}

func (r *ChatRequest) validateThinking(cfg *ThinkingConfig) error {
	isGemini3 := strings.Contains(r.Model, "gemini-3")
	isGemini3Pro := strings.Contains(r.Model, "gemini-3-pro")
	isGemini25 := strings.Contains(r.Model, "gemini-2.5")

	if cfg.ThinkingLevel != nil && cfg.ThinkingBudget != nil {
		return NewValidationError("thinking_config", "cannot specify both thinking_level and thinking_budget")
	}

	if cfg.ThinkingLevel != nil {
		if !isGemini3 {
			return NewValidationError("thinking_level", "only supported for Gemini 3 models")
		}
		level := *cfg.ThinkingLevel
		if isGemini3Pro && (level == ThinkingMinimal || level == ThinkingMedium) {
			return NewValidationError("thinking_level", "Gemini 3 Pro only supports 'low' and 'high'")
		}
	}

	if cfg.ThinkingBudget != nil {
		if !isGemini25 {
			return NewValidationError("thinking_budget", "only supported for Gemini 2.5 models")
		}
		budget := *cfg.ThinkingBudget
		switch {
		case strings.Contains(r.Model, "2.5-pro"):
			if budget != -1 && (budget < 128 || budget > 32768) {
				return NewValidationError("thinking_budget", "Gemini 2.5 Pro budget must be -1 (dynamic) or between 128 and 32768")
			}
		case strings.Contains(r.Model, "2.5-flash"):
			if budget != -1 && (budget < 0 || budget > 24576) {
				return NewValidationError("thinking_budget", "Gemini 2.5 Flash budget must be -1 (dynamic) or between 0 and 24576")
			}
		}
	}
	return nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
