package rainy

import (
	"time"

	"rainy/internal/catalog"
)

// HealthStatus is returned by the health endpoints
type HealthStatus struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Uptime    float64         `json:"uptime"`
	Services  *HealthServices `json:"services,omitempty"`
}

// Healthy reports whether the API considers itself healthy
func (h *HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// HealthServices is the per-dependency status in a detailed health check
type HealthServices struct {
	Database  bool `json:"database"`
	Redis     bool `json:"redis"`
	Providers bool `json:"providers"`
}

// User is the account that owns the API key
type User struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	PlanName             string    `json:"plan_name"`
	CurrentCredits       float64   `json:"current_credits"`
	CreditsUsedThisMonth float64   `json:"credits_used_this_month"`
	CreditsResetDate     time.Time `json:"credits_reset_date"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
}

// APIKey describes one API key of the account
type APIKey struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	OwnerID     string     `json:"owner_id"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Description string     `json:"description,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyUpdate lists the mutable fields of an API key; nil fields are left as is
type APIKeyUpdate struct {
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type createKeyRequest struct {
	Description   string `json:"description"`
	ExpiresInDays *int   `json:"expiresInDays,omitempty"`
}

type listKeysResponse struct {
	APIKeys []APIKey `json:"api_keys"`
}

// CreditInfo is the credit balance of the account
type CreditInfo struct {
	CurrentCredits      float64 `json:"current_credits"`
	EstimatedCost       float64 `json:"estimated_cost"`
	CreditsAfterRequest float64 `json:"credits_after_request"`
	ResetDate           string  `json:"reset_date"`
}

type creditsResponse struct {
	Credits CreditInfo `json:"credits"`
}

// UsageStats summarizes usage over a period
type UsageStats struct {
	PeriodDays         int                 `json:"period_days"`
	DailyUsage         []DailyUsage        `json:"daily_usage"`
	RecentTransactions []CreditTransaction `json:"recent_transactions"`
	TotalRequests      int64               `json:"total_requests"`
	TotalTokens        int64               `json:"total_tokens"`
}

// DailyUsage is one day of usage
type DailyUsage struct {
	Date        string  `json:"date"`
	CreditsUsed float64 `json:"credits_used"`
	Requests    int64   `json:"requests"`
	Tokens      int64   `json:"tokens"`
}

// CreditTransaction is one movement of credits: usage, reset, purchase or refund
type CreditTransaction struct {
	ID                  string    `json:"id"`
	TransactionType     string    `json:"transaction_type"`
	CreditsAmount       float64   `json:"credits_amount"`
	CreditsBalanceAfter float64   `json:"credits_balance_after"`
	Provider            string    `json:"provider,omitempty"`
	Model               string    `json:"model,omitempty"`
	Description         string    `json:"description"`
	CreatedAt           time.Time `json:"created_at"`
}

// AvailableModels lists the models the API can route to, by provider
type AvailableModels struct {
	Providers       map[string][]string `json:"providers"`
	TotalModels     int                 `json:"total_models"`
	ActiveProviders []string            `json:"active_providers"`
}

// CoworkModels is the model list of the key's plan, without the rest of the
// capabilities
type CoworkModels struct {
	Tier   catalog.Tier `json:"tier,omitempty"`
	Models []string     `json:"models"`
}

// Research providers and depths
const (
	ResearchExa    = "exa"
	ResearchTavily = "tavily"

	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// ResearchRequest asks the API to research a topic on the web
type ResearchRequest struct {
	Topic      string `json:"topic"`
	Provider   string `json:"provider"`
	Depth      string `json:"depth"`
	MaxSources int    `json:"maxSources"`
	Async      bool   `json:"async"`
}

// NewResearchRequest returns a synchronous basic-depth request using Exa with
// up to 10 sources
func NewResearchRequest(topic string) *ResearchRequest {
	return &ResearchRequest{
		Topic:      topic,
		Provider:   ResearchExa,
		Depth:      DepthBasic,
		MaxSources: 10,
	}
}

// ResearchResponse carries the result for synchronous research, or a task ID
// for asynchronous research
type ResearchResponse struct {
	Success     bool   `json:"success"`
	Mode        string `json:"mode"`
	Result      string `json:"result,omitempty"`
	TaskID      string `json:"taskId,omitempty"`
	GeneratedAt string `json:"generatedAt,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Message     string `json:"message,omitempty"`
}
