package core

import (
	"sort"
	"strings"
)

// Accumulator folds streamed chunks into a complete ChatResponse.
// Callers feed it Data frames in order; it is not safe for concurrent use.
type Accumulator struct {
	id        string
	model     string
	created   int64
	role      string
	content   strings.Builder
	finish    string
	usage     *Usage
	toolCalls map[int]*toolCallBuilder
}

type toolCallBuilder struct {
	id        string
	typ       string
	name      string
	arguments strings.Builder
}

// Add merges one chunk. Only the first choice is aggregated.
func (a *Accumulator) Add(chunk *ChatCompletionChunk) {
	if chunk == nil {
		return
	}
	if a.id == "" {
		a.id = chunk.ID
	}
	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if a.created == 0 {
		a.created = chunk.Created
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.usage = &u
	}
	for _, choice := range chunk.Choices {
		if choice.Index != 0 {
			continue
		}
		if choice.Delta.Role != "" {
			a.role = choice.Delta.Role
		}
		a.content.WriteString(choice.Delta.Content)
		if choice.FinishReason != "" {
			a.finish = choice.FinishReason
		}
		for _, tc := range choice.Delta.ToolCalls {
			a.addToolCall(tc)
		}
	}
}

func (a *Accumulator) addToolCall(tc ToolCall) {
	if a.toolCalls == nil {
		a.toolCalls = make(map[int]*toolCallBuilder)
	}
	b, ok := a.toolCalls[tc.Index]
	if !ok {
		b = &toolCallBuilder{}
		a.toolCalls[tc.Index] = b
	}
	if tc.ID != "" {
		b.id = tc.ID
	}
	if tc.Type != "" {
		b.typ = tc.Type
	}
	if tc.Function.Name != "" {
		b.name = tc.Function.Name
	}
	b.arguments.WriteString(tc.Function.Arguments)
}

// Response returns the aggregated response so far
func (a *Accumulator) Response() *ChatResponse {
	role := a.role
	if role == "" {
		role = RoleAssistant
	}
	msg := Message{Role: role, Content: a.content.String()}

	indexes := make([]int, 0, len(a.toolCalls))
	for idx := range a.toolCalls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		b := a.toolCalls[idx]
		typ := b.typ
		if typ == "" {
			typ = "function"
		}
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			Index:    idx,
			ID:       b.id,
			Type:     typ,
			Function: ToolCallFunction{Name: b.name, Arguments: b.arguments.String()},
		})
	}

	return &ChatResponse{
		ID:      a.id,
		Object:  "chat.completion",
		Model:   a.model,
		Created: a.created,
		Choices: []Choice{{Message: msg, FinishReason: a.finish}},
		Usage:   a.usage,
	}
}
