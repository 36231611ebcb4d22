// Package catalog holds the known model identifiers and the subscription
// tiers that gate access to them.
package catalog

import (
	"maps"
	"slices"
	"strings"
)

// Provider identifiers as reported by the Rainy API.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGroq       = "groq"
	ProviderCerebras   = "cerebras"
	ProviderGemini     = "gemini"
	ProviderEnosisLabs = "enosislabs"
)

// OpenAI models
const (
	GPT4o   = "gpt-4o"
	GPT5    = "gpt-5"
	GPT5Pro = "gpt-5-pro"
	O3      = "o3"
	O4Mini  = "o4-mini"
)

// Gemini models
const (
	Gemini25Pro         = "gemini-2.5-pro"
	Gemini25Flash       = "gemini-2.5-flash"
	Gemini25FlashLite   = "gemini-2.5-flash-lite"
	Gemini3ProPreview   = "gemini-3-pro-preview"
	Gemini3FlashPreview = "gemini-3-flash-preview"
	Gemini3ProImage     = "gemini-3-pro-image-preview"
)

// Groq and Cerebras hosted models
const (
	Llama31_8BInstant    = "llama-3.1-8b-instant"
	Llama33_70BVersatile = "llama-3.3-70b-versatile"
	KimiK2Instruct       = "moonshotai/kimi-k2-instruct-0905"
	CerebrasLlama31_8B   = "cerebras/llama3.1-8b"
)

// Astronomer models served by Enosis Labs
const (
	Astronomer1    = "astronomer-1"
	Astronomer1Max = "astronomer-1-max"
	Astronomer15   = "astronomer-1.5"
	Astronomer2    = "astronomer-2"
	Astronomer2Pro = "astronomer-2-pro"
)

var modelProviders = map[string]string{
	GPT4o:                ProviderOpenAI,
	GPT5:                 ProviderOpenAI,
	GPT5Pro:              ProviderOpenAI,
	O3:                   ProviderOpenAI,
	O4Mini:               ProviderOpenAI,
	Gemini25Pro:          ProviderGemini,
	Gemini25Flash:        ProviderGemini,
	Gemini25FlashLite:    ProviderGemini,
	Gemini3ProPreview:    ProviderGemini,
	Gemini3FlashPreview:  ProviderGemini,
	Gemini3ProImage:      ProviderGemini,
	Llama31_8BInstant:    ProviderGroq,
	Llama33_70BVersatile: ProviderGroq,
	KimiK2Instruct:       ProviderGroq,
	CerebrasLlama31_8B:   ProviderCerebras,
	Astronomer1:          ProviderEnosisLabs,
	Astronomer1Max:       ProviderEnosisLabs,
	Astronomer15:         ProviderEnosisLabs,
	Astronomer2:          ProviderEnosisLabs,
	Astronomer2Pro:       ProviderEnosisLabs,
}

// ProviderForModel returns the upstream provider for a model id. Unknown
// models are matched by family prefix; ok is false when nothing matches.
func ProviderForModel(model string) (provider string, ok bool) {
	if p, found := modelProviders[model]; found {
		return p, true
	}
	switch {
	case strings.HasPrefix(model, "gpt-"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return ProviderOpenAI, true
	case strings.HasPrefix(model, "gemini-"):
		return ProviderGemini, true
	case strings.HasPrefix(model, "cerebras/"):
		return ProviderCerebras, true
	case strings.HasPrefix(model, "llama-"), strings.HasPrefix(model, "moonshotai/"):
		return ProviderGroq, true
	case strings.HasPrefix(model, "astronomer-"):
		return ProviderEnosisLabs, true
	case strings.HasPrefix(model, "claude-"):
		return ProviderAnthropic, true
	}
	return "", false
}

// Models returns every known model id, sorted
func Models() []string {
	return slices.Sorted(maps.Keys(modelProviders))
}
