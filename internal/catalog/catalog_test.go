package catalog

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderForModel(t *testing.T) {
	tests := []struct {
		model    string
		provider string
		ok       bool
	}{
		{GPT5, ProviderOpenAI, true},
		{"gpt-4.1-mini", ProviderOpenAI, true},
		{O4Mini, ProviderOpenAI, true},
		{Gemini3ProPreview, ProviderGemini, true},
		{"gemini-1.5-pro", ProviderGemini, true},
		{CerebrasLlama31_8B, ProviderCerebras, true},
		{Llama33_70BVersatile, ProviderGroq, true},
		{KimiK2Instruct, ProviderGroq, true},
		{Astronomer2Pro, ProviderEnosisLabs, true},
		{"claude-sonnet-4", ProviderAnthropic, true},
		{"mystery-model", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, ok := ProviderForModel(tt.model)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.provider, got)
		})
	}
}

func TestModelsSorted(t *testing.T) {
	models := Models()
	assert.True(t, slices.IsSorted(models))
	assert.Contains(t, models, Astronomer15)
}

func TestTier(t *testing.T) {
	assert.False(t, TierFree.IsPremium())
	assert.True(t, TierBasic.IsPremium())
	assert.True(t, TierPro.IsPremium())
	assert.True(t, TierEnterprise.IsPremium())

	assert.False(t, TierBasic.HasFullModelAccess())
	assert.True(t, TierPro.HasFullModelAccess())
	assert.True(t, TierEnterprise.HasFullModelAccess())

	tier, err := ParseTier(" PRO ")
	require.NoError(t, err)
	assert.Equal(t, TierPro, tier)

	_, err = ParseTier("platinum")
	assert.Error(t, err)
}

func TestTierCapabilities(t *testing.T) {
	free := FreeCapabilities()
	assert.False(t, free.IsValid)
	assert.Empty(t, free.Models)
	assert.False(t, free.CanUseFeature(FeatureWebResearch))

	basic := BasicCapabilities()
	assert.True(t, basic.CanUseModel(GPT4o))
	assert.False(t, basic.CanUseModel(GPT5))
	assert.False(t, basic.CanUseFeature(FeatureAutomation))

	pro := ProCapabilities()
	assert.True(t, pro.CanUseModel(Astronomer2Pro))
	assert.True(t, pro.CanUseFeature(FeaturePriorityQueue))
	assert.False(t, pro.CanUseFeature(FeatureBetaFeatures))
	assert.Nil(t, pro.Limits.MaxTasksPerDay)
	assert.EqualValues(t, 100*mib, *pro.Limits.MaxFileSizeBytes)

	ent := EnterpriseCapabilities()
	assert.Equal(t, TierEnterprise, ent.Tier)
	assert.True(t, ent.CanUseFeature(FeatureBetaFeatures))
	assert.Nil(t, ent.Limits.MaxFileSizeBytes)
	assert.Equal(t, pro.Models, ent.Models)

	assert.False(t, ent.CanUseFeature("teleportation"))
}

func TestLimits(t *testing.T) {
	l := FreeCapabilities().Limits
	l.TasksUsedToday = 3
	remaining, ok := l.RemainingTasks()
	assert.True(t, ok)
	assert.EqualValues(t, 2, remaining)
	assert.False(t, l.IsTaskLimitReached())

	l.TasksUsedToday = 9
	remaining, _ = l.RemainingTasks()
	assert.Zero(t, remaining)
	assert.True(t, l.IsTaskLimitReached())

	_, ok = ProCapabilities().Limits.RemainingTasks()
	assert.False(t, ok)
	assert.False(t, ProCapabilities().Limits.IsTaskLimitReached())
}

func TestOfflineCapabilities(t *testing.T) {
	off := OfflineCapabilities(TierPro)
	assert.Equal(t, TierPro, off.Tier)
	assert.Equal(t, []string{Gemini25Flash}, off.Models)
	assert.Equal(t, Features{}, off.Features)

	assert.Equal(t, FreeCapabilities(), OfflineCapabilities(TierFree))
	assert.Equal(t, FreeCapabilities(), OfflineCapabilities(""))
}

func TestCapabilitiesJSON(t *testing.T) {
	body := `{
		"tier": "Pro",
		"tier_name": "Pro",
		"models": ["gpt-5"],
		"features": {"web_research": true},
		"limits": {"max_tasks_per_day": null, "tasks_used_today": 4, "max_file_size_bytes": 1024}
	}`
	var caps Capabilities
	require.NoError(t, json.Unmarshal([]byte(body), &caps))
	assert.Equal(t, TierPro, caps.Tier)
	assert.True(t, caps.CanUseModel(GPT5))
	assert.True(t, caps.CanUseFeature(FeatureWebResearch))
	assert.Nil(t, caps.Limits.MaxTasksPerDay)
	assert.EqualValues(t, 4, caps.Limits.TasksUsedToday)

	var bad Capabilities
	assert.Error(t, json.Unmarshal([]byte(`{"tier":"gold"}`), &bad))
}
