package e2e

import (
	"context"
	"fmt"

	"github.com/bc-dunia/sysagent/internal/llm"
)

// scriptedChat replays a fixed sequence of chat responses, standing in
// for the generative service so loop behavior stays deterministic
// while everything below it runs over real HTTP.
type scriptedChat struct {
	responses []*llm.ChatResponse
	calls     int
}

func (s *scriptedChat) Configured() bool { return true }

func (s *scriptedChat) ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.ChatResponse, error) {
	if s.calls >= len(s.responses) {
		return nil, fmt.Errorf("unexpected chat call %d", s.calls)
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func textResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
			FinishReason: llm.FinishStop,
		}},
	}
}

func toolCallResponse(calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{
			Message:      llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
			FinishReason: llm.FinishToolCalls,
		}},
	}
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Type:     "function",
		Function: llm.ToolCallFunction{Name: name, Arguments: args},
	}
}
