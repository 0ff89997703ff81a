// Package providers implements the agent.LLMClient interface for the chat
// completion backends MovieBot can run against.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/agent"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// OpenAI implements agent.LLMClient on the OpenAI chat completions API.
// Also works against OpenAI-compatible endpoints via a custom base URL.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates a client. baseURL is optional and overrides the API host
// for compatible gateways.
func NewOpenAI(apiKey, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}, nil
}

// Chat performs a blocking completion.
func (p *OpenAI) Chat(ctx context.Context, req agent.ChatRequest) (agent.ChatResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, convertRequest(req))
	if err != nil {
		return agent.ChatResponse{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agent.ChatResponse{}, errors.New("openai chat: empty response")
	}
	return convertMessage(resp.Choices[0].Message), nil
}

// StreamChat streams text deltas through onChunk. Tool call fragments are
// accumulated across chunks and returned whole.
func (p *OpenAI) StreamChat(ctx context.Context, req agent.ChatRequest, onChunk func(delta string)) (agent.ChatResponse, error) {
	chatReq := convertRequest(req)
	chatReq.Stream = true

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return agent.ChatResponse{}, fmt.Errorf("openai stream: %w", err)
	}
	defer stream.Close()

	var out agent.ChatResponse
	partial := map[int]*models.ToolCall{}
	order := []int{}

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return agent.ChatResponse{}, fmt.Errorf("openai stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			out.Content += delta.Content
			if onChunk != nil {
				onChunk(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			call, ok := partial[index]
			if !ok {
				call = &models.ToolCall{}
				partial[index] = call
				order = append(order, index)
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				call.Arguments = append(call.Arguments, tc.Function.Arguments...)
			}
		}
	}

	for _, index := range order {
		if call := partial[index]; call.ID != "" && call.Name != "" {
			out.ToolCalls = append(out.ToolCalls, *call)
		}
	}
	return out, nil
}

func convertRequest(req agent.ChatRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}

	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleTool:
			out.Messages = append(out.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.CallID,
			})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out.Messages = append(out.Messages, msg)
		default:
			out.Messages = append(out.Messages, openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}

	for _, t := range req.Tools {
		var params map[string]any
		if err := json.Unmarshal(t.Parameters, &params); err != nil {
			params = map[string]any{"type": "object"}
		}
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	switch req.ToolChoice {
	case agent.ToolChoiceAuto:
		out.ToolChoice = "auto"
	case agent.ToolChoiceRequired:
		out.ToolChoice = "required"
	case agent.ToolChoiceNone:
		out.ToolChoice = "none"
	}
	return out
}

func convertMessage(msg openai.ChatCompletionMessage) agent.ChatResponse {
	out := agent.ChatResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
