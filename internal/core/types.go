package core

import (
	"encoding/json"
	"time"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	User             string          `json:"user,omitempty"`
	Provider         string          `json:"provider,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	StreamOptions    *StreamOptions  `json:"stream_options,omitempty"`
	LogitBias        json.RawMessage `json:"logit_bias,omitempty"`
	Logprobs         *bool           `json:"logprobs,omitempty"`
	TopLogprobs      *int            `json:"top_logprobs,omitempty"`
	N                *int            `json:"n,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	ThinkingConfig   *ThinkingConfig `json:"thinking_config,omitempty"`
}

// StreamOptions controls extra streamed data such as the final usage chunk
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// WithStreaming returns a shallow copy of the request with Stream set to true.
// This avoids mutating the caller's request object.
func (r *ChatRequest) WithStreaming() *ChatRequest {
	cp := *r
	cp.Stream = true
	if cp.StreamOptions == nil {
		cp.StreamOptions = &StreamOptions{IncludeUsage: true}
	}
	return &cp
}

// SupportsThinking reports whether the target model accepts a thinking config
func (r *ChatRequest) SupportsThinking() bool {
	return containsAny(r.Model, "gemini-3", "gemini-2.5")
}

// RequiresThoughtSignatures reports whether multi-turn tool use must echo thought signatures
func (r *ChatRequest) RequiresThoughtSignatures() bool {
	return containsAny(r.Model, "gemini-3")
}

// Message represents a single message in the chat
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// SystemMessage, UserMessage and AssistantMessage build plain text messages.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ResponseFormat selects text, json_object or json_schema output
type ResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// Tool is a function the model may call
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a callable function
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall is a complete or partial (streamed) function call
type ToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the function name and JSON arguments
type ToolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ThinkingLevel is the Gemini 3 reasoning depth
type ThinkingLevel string

const (
	ThinkingMinimal ThinkingLevel = "minimal"
	ThinkingLow     ThinkingLevel = "low"
	ThinkingMedium  ThinkingLevel = "medium"
	ThinkingHigh    ThinkingLevel = "high"
)

// ThinkingConfig configures reasoning for Gemini 2.5 (budget) and Gemini 3 (level) models
type ThinkingConfig struct {
	IncludeThoughts *bool          `json:"include_thoughts,omitempty"`
	ThinkingLevel   *ThinkingLevel `json:"thinking_level,omitempty"`
	ThinkingBudget  *int           `json:"thinking_budget,omitempty"`
}

// ChatResponse represents the chat completion response
type ChatResponse struct {
	ID       string   `json:"id"`
	Object   string   `json:"object"`
	Model    string   `json:"model"`
	Provider string   `json:"provider,omitempty"`
	Choices  []Choice `json:"choices"`
	Usage    *Usage   `json:"usage,omitempty"`
	Created  int64    `json:"created"`
}

// Content returns the first choice's message content
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice represents a single completion choice
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
	Index        int     `json:"index"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is one decoded SSE fragment of a streamed completion
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is one choice delta inside a chunk
type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta is the incremental content of a chunk choice
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// FrameKind tags a StreamFrame
type FrameKind int

const (
	// FrameData carries a decoded chunk
	FrameData FrameKind = iota
	// FrameDone marks the [DONE] sentinel
	FrameDone
	// FrameParseError marks an event whose payload could not be decoded
	FrameParseError
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameDone:
		return "done"
	case FrameParseError:
		return "parse_error"
	}
	return "unknown"
}

// StreamFrame is one element of a decoded SSE stream
type StreamFrame struct {
	Kind  FrameKind
	Chunk *ChatCompletionChunk
	// Err is set for FrameParseError
	Err error
}

// ResponseMetadata describes a completed synchronous call
type ResponseMetadata struct {
	Provider         string
	RequestID        string
	Latency          time.Duration
	Attempts         int
	StatusCode       int
	TokensUsed       *int
	CreditsUsed      *float64
	CreditsRemaining *float64
	// ServerTime is the server-reported processing time, when sent
	ServerTime *time.Duration
}

// Model represents a single model in the models list
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

// ModelsResponse represents the response from a /models endpoint
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
