package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ParallelUniverseProgrammer/moviebot/internal/agent"
	"github.com/ParallelUniverseProgrammer/moviebot/pkg/models"
)

// anthropicMaxTokens caps completion length. Generous for chat replies.
const anthropicMaxTokens = 4096

// Anthropic implements agent.LLMClient on the Claude Messages API.
type Anthropic struct {
	client sdk.Client
}

// NewAnthropic creates a client for the given API key.
func NewAnthropic(apiKey string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	return &Anthropic{client: sdk.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Chat performs a blocking completion.
func (p *Anthropic) Chat(ctx context.Context, req agent.ChatRequest) (agent.ChatResponse, error) {
	params, err := encodeParams(req)
	if err != nil {
		return agent.ChatResponse{}, err
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return agent.ChatResponse{}, fmt.Errorf("anthropic chat: %w", err)
	}
	return decodeMessage(msg), nil
}

// StreamChat streams text deltas through onChunk and returns the accumulated
// message.
func (p *Anthropic) StreamChat(ctx context.Context, req agent.ChatRequest, onChunk func(delta string)) (agent.ChatResponse, error) {
	params, err := encodeParams(req)
	if err != nil {
		return agent.ChatResponse{}, err
	}
	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	acc := sdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return agent.ChatResponse{}, fmt.Errorf("anthropic stream: %w", err)
		}
		if onChunk != nil {
			if deltaEvent, ok := event.AsAny().(sdk.ContentBlockDeltaEvent); ok {
				if text := deltaEvent.Delta.Text; text != "" {
					onChunk(text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return agent.ChatResponse{}, fmt.Errorf("anthropic stream: %w", err)
	}
	return decodeMessage(&acc), nil
}

// encodeParams translates a request into the Messages API shape. System
// messages go into the dedicated System field; tool results are grouped into
// the user message that follows their assistant declaration.
func encodeParams(req agent.ChatRequest) (sdk.MessageNewParams, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: anthropicMaxTokens,
	}

	var conversation []sdk.MessageParam
	var pendingResults []sdk.ContentBlockParamUnion
	flushResults := func() {
		if len(pendingResults) > 0 {
			conversation = append(conversation, sdk.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			flushResults()
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})

		case models.RoleUser:
			flushResults()
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))

		case models.RoleAssistant:
			flushResults()
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if err := json.Unmarshal(tc.Arguments, &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))

		case models.RoleTool:
			pendingResults = append(pendingResults,
				sdk.NewToolResultBlock(m.CallID, m.Content, false))
		}
	}
	flushResults()
	if len(conversation) == 0 {
		return params, errors.New("anthropic: at least one user message is required")
	}
	params.Messages = conversation

	for _, t := range req.Tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Parameters, &schema); err != nil {
			return params, fmt.Errorf("anthropic: tool %q schema: %w", t.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		params.Tools = append(params.Tools, u)
	}

	switch req.ToolChoice {
	case agent.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfNone: &none}
	case agent.ToolChoiceRequired:
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	}
	return params, nil
}

func decodeMessage(msg *sdk.Message) agent.ChatResponse {
	var out agent.ChatResponse
	if msg == nil {
		return out
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: json.RawMessage(block.Input),
			})
		}
	}
	return out
}
