package catalog

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Tier is a Rainy subscription tier
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier maps a tier name to a Tier; matching is case-insensitive
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return t, nil
	}
	return TierFree, fmt.Errorf("unknown tier %q", s)
}

// UnmarshalJSON accepts tier names in any case
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// IsPremium reports whether the tier is paid
func (t Tier) IsPremium() bool {
	return t != TierFree && t != ""
}

// HasFullModelAccess reports whether every catalog model is unlocked
func (t Tier) HasFullModelAccess() bool {
	return t == TierPro || t == TierEnterprise
}

// Feature names accepted by Capabilities.CanUseFeature
const (
	FeatureWebResearch    = "web_research"
	FeatureDocumentExport = "document_export"
	FeatureImageAnalysis  = "image_analysis"
	FeatureAutomation     = "automation"
	FeaturePriorityQueue  = "priority_queue"
	FeatureBetaFeatures   = "beta_features"
)

// Features are the per-tier feature flags
type Features struct {
	WebResearch    bool `json:"web_research"`
	DocumentExport bool `json:"document_export"`
	ImageAnalysis  bool `json:"image_analysis"`
	Automation     bool `json:"automation"`
	PriorityQueue  bool `json:"priority_queue"`
	BetaFeatures   bool `json:"beta_features"`
}

// Limits are the usage limits for the current period. A nil pointer means
// unlimited.
type Limits struct {
	MaxTasksPerDay      *uint32 `json:"max_tasks_per_day"`
	TasksUsedToday      uint32  `json:"tasks_used_today"`
	MaxTokensPerRequest *uint32 `json:"max_tokens_per_request"`
	MaxFileSizeBytes    *uint64 `json:"max_file_size_bytes"`
}

// IsTaskLimitReached reports whether today's task quota is used up
func (l Limits) IsTaskLimitReached() bool {
	return l.MaxTasksPerDay != nil && l.TasksUsedToday >= *l.MaxTasksPerDay
}

// RemainingTasks returns the tasks left today; ok is false when unlimited
func (l Limits) RemainingTasks() (remaining uint32, ok bool) {
	if l.MaxTasksPerDay == nil {
		return 0, false
	}
	if l.TasksUsedToday >= *l.MaxTasksPerDay {
		return 0, true
	}
	return *l.MaxTasksPerDay - l.TasksUsedToday, true
}

// Capabilities describe what an API key may do
type Capabilities struct {
	Tier      Tier     `json:"tier"`
	TierName  string   `json:"tier_name"`
	Models    []string `json:"models"`
	Features  Features `json:"features"`
	Limits    Limits   `json:"limits"`
	IsValid   bool     `json:"is_valid"`
	ExpiresAt string   `json:"expires_at,omitempty"`
}

// CanUseModel reports whether model is available to the tier
func (c *Capabilities) CanUseModel(model string) bool {
	return slices.Contains(c.Models, model)
}

// CanUseFeature reports whether the named feature is enabled; unknown names
// are never enabled.
func (c *Capabilities) CanUseFeature(feature string) bool {
	switch feature {
	case FeatureWebResearch:
		return c.Features.WebResearch
	case FeatureDocumentExport:
		return c.Features.DocumentExport
	case FeatureImageAnalysis:
		return c.Features.ImageAnalysis
	case FeatureAutomation:
		return c.Features.Automation
	case FeaturePriorityQueue:
		return c.Features.PriorityQueue
	case FeatureBetaFeatures:
		return c.Features.BetaFeatures
	}
	return false
}

// IsPremium reports whether the capabilities belong to a paid tier
func (c *Capabilities) IsPremium() bool {
	return c.Tier.IsPremium()
}

// HasFullModelAccess reports whether the tier unlocks every model
func (c *Capabilities) HasFullModelAccess() bool {
	return c.Tier.HasFullModelAccess()
}

func ptr[T any](v T) *T { return &v }

const mib = 1024 * 1024

// FreeCapabilities is the tier used without a valid API key
func FreeCapabilities() *Capabilities {
	return &Capabilities{
		Tier:     TierFree,
		TierName: "Free",
		Models:   []string{},
		Limits: Limits{
			MaxTasksPerDay:      ptr[uint32](5),
			MaxTokensPerRequest: ptr[uint32](4096),
			MaxFileSizeBytes:    ptr[uint64](1 * mib),
		},
	}
}

// BasicCapabilities is the tier of any valid key without a subscription
func BasicCapabilities() *Capabilities {
	return &Capabilities{
		Tier:     TierBasic,
		TierName: "Basic",
		Models:   []string{GPT4o, Gemini25Flash, Gemini25FlashLite, Llama31_8BInstant},
		Limits: Limits{
			MaxTasksPerDay:      ptr[uint32](50),
			MaxTokensPerRequest: ptr[uint32](16384),
			MaxFileSizeBytes:    ptr[uint64](10 * mib),
		},
		IsValid: true,
	}
}

// ProCapabilities unlocks every model and all but beta features
func ProCapabilities() *Capabilities {
	return &Capabilities{
		Tier:     TierPro,
		TierName: "Pro",
		Models: []string{
			GPT4o, GPT5, GPT5Pro, O3, O4Mini,
			Gemini25Pro, Gemini25Flash, Gemini25FlashLite,
			Llama31_8BInstant, Llama33_70BVersatile,
			CerebrasLlama31_8B,
			Astronomer2, Astronomer2Pro,
		},
		Features: Features{
			WebResearch:    true,
			DocumentExport: true,
			ImageAnalysis:  true,
			Automation:     true,
			PriorityQueue:  true,
		},
		Limits: Limits{
			MaxFileSizeBytes: ptr[uint64](100 * mib),
		},
		IsValid: true,
	}
}

// EnterpriseCapabilities is Pro with beta features and no file size limit
func EnterpriseCapabilities() *Capabilities {
	c := ProCapabilities()
	c.Tier = TierEnterprise
	c.TierName = "Enterprise"
	c.Features.BetaFeatures = true
	c.Limits.MaxFileSizeBytes = nil
	return c
}

// CapabilitiesFor returns the default capabilities of a tier
func CapabilitiesFor(t Tier) *Capabilities {
	switch t {
	case TierBasic:
		return BasicCapabilities()
	case TierPro:
		return ProCapabilities()
	case TierEnterprise:
		return EnterpriseCapabilities()
	}
	return FreeCapabilities()
}

// OfflineCapabilities is used when the capabilities endpoint is unreachable.
// A cached paid tier keeps a minimal model set with every feature off until
// the server can confirm it; anything else falls back to free.
func OfflineCapabilities(cached Tier) *Capabilities {
	if !cached.IsPremium() {
		return FreeCapabilities()
	}
	c := CapabilitiesFor(cached)
	c.Models = []string{Gemini25Flash}
	c.Features = Features{}
	return c
}
