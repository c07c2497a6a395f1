// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's Messages
// API to llm.Operations, translating llm.Interaction/llm.Response into the
// SDK's request/response shapes. Grounded on the teacher's equivalent
// features/model/anthropic adapter, narrowed to the Message/Part surface
// pkg/llm actually defines.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/embabel/agent-core-go/pkg/llm"
)

// MessagesClient captures the subset of the Anthropic SDK client the adapter
// needs. It is satisfied by *sdk.MessageService so callers can pass either a
// real client or a mock in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures the Anthropic adapter.
type Options struct {
	// DefaultModel is the Claude model identifier used for every call.
	// Use the typed model constants from anthropic-sdk-go (e.g.
	// string(sdk.ModelClaudeSonnet4_5_20250929)).
	DefaultModel string

	// MaxTokens sets the completion cap. Required; Anthropic rejects
	// requests without one.
	MaxTokens int

	// Temperature is applied to every request when positive.
	Temperature float64
}

// Client implements llm.Operations on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTok       int
	temp         float64
}

// New builds a Client from an Anthropic Messages client and Options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("anthropic: max tokens must be positive")
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, defaultModel string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel, MaxTokens: maxTokens})
}

// SupportsStreaming always returns true: every Anthropic model the adapter
// can address supports Messages streaming.
func (c *Client) SupportsStreaming() bool { return true }

// Complete issues a non-streaming Messages.New request.
func (c *Client) Complete(ctx context.Context, interaction *llm.Interaction) (*llm.Response, error) {
	params, err := c.prepareRequest(ctx, interaction)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateMessage(msg), nil
}

// Stream invokes Messages.NewStreaming and adapts incremental events into
// llm.StreamEvents.
func (c *Client) Stream(ctx context.Context, interaction *llm.Interaction) (<-chan llm.StreamEvent, error) {
	params, err := c.prepareRequest(ctx, interaction)
	if err != nil {
		return nil, err
	}
	stream := c.msg.NewStreaming(ctx, *params)

	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()
		var text string
		var toolCalls []llm.ToolCall
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case sdk.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
					text += delta.Text
					ch <- llm.StreamEvent{Kind: llm.StreamObject, Object: llm.Message{Role: llm.RoleAssistant, Parts: []llm.Part{llm.TextPart{Text: delta.Text}}}}
				}
			case sdk.ContentBlockStartEvent:
				if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
					toolCalls = append(toolCalls, llm.ToolCall{ID: toolUse.ID, Name: toolUse.Name, Payload: toolCallPayload(toolUse.Input)})
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- llm.StreamEvent{Kind: llm.StreamEnd, Err: fmt.Errorf("anthropic messages.new stream: %w", err)}
			return
		}
		parts := []llm.Part{llm.TextPart{Text: text}}
		for _, tc := range toolCalls {
			var input any
			_ = json.Unmarshal(tc.Payload, &input)
			parts = append(parts, llm.ToolUsePart{ID: tc.ID, Name: tc.Name, Input: input})
		}
		ch <- llm.StreamEvent{Kind: llm.StreamEnd, Response: &llm.Response{
			Messages:  []llm.Message{{Role: llm.RoleAssistant, Parts: parts}},
			ToolCalls: toolCalls,
		}}
	}()
	return ch, nil
}

func (c *Client) prepareRequest(ctx context.Context, interaction *llm.Interaction) (*sdk.MessageNewParams, error) {
	messages, err := interaction.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	conversation, system, err := encodeMessages(messages)
	if err != nil {
		return nil, err
	}
	if len(conversation) == 0 {
		return nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	tools, err := encodeTools(interaction.ToolDefinitions())
	if err != nil {
		return nil, err
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(c.maxTok),
		Messages:  conversation,
		Model:     sdk.Model(c.defaultModel),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if c.temp > 0 {
		params.Temperature = sdk.Float(c.temp)
	}
	return &params, nil
}

func encodeMessages(msgs []llm.Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0, len(msgs))

	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			for _, p := range m.Parts {
				if t, ok := p.(llm.TextPart); ok && t.Text != "" {
					system = append(system, sdk.TextBlockParam{Text: t.Text})
				}
			}
			continue
		}

		blocks := make([]sdk.ContentBlockParamUnion, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case llm.TextPart:
				if v.Text != "" {
					blocks = append(blocks, sdk.NewTextBlock(v.Text))
				}
			case llm.ToolUsePart:
				blocks = append(blocks, sdk.NewToolUseBlock(v.ID, v.Input, v.Name))
			case llm.ToolResultPart:
				blocks = append(blocks, encodeToolResult(v))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case llm.RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(blocks...))
		case llm.RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	return conversation, system, nil
}

func encodeToolResult(v llm.ToolResultPart) sdk.ContentBlockParamUnion {
	var content string
	switch c := v.Content.(type) {
	case nil:
		content = ""
	case string:
		content = c
	case []byte:
		content = string(c)
	default:
		if data, err := json.Marshal(c); err == nil {
			content = string(data)
		}
	}
	return sdk.NewToolResultBlock(v.ToolUseID, content, v.IsError)
}

func encodeTools(defs []llm.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := toolInputSchema(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
		}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func toolInputSchema(schema any) (sdk.ToolInputSchemaParam, error) {
	if schema == nil {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var raw json.RawMessage
	switch v := schema.(type) {
	case json.RawMessage:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return sdk.ToolInputSchemaParam{}, err
		}
		raw = data
	}
	if len(raw) == 0 {
		return sdk.ToolInputSchemaParam{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sdk.ToolInputSchemaParam{}, err
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}, nil
}

func translateMessage(msg *sdk.Message) *llm.Response {
	if msg == nil {
		return nil
	}
	resp := &llm.Response{
		Usage: llm.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	var parts []llm.Part
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case sdk.TextBlock:
			parts = append(parts, llm.TextPart{Text: v.Text})
		case sdk.ToolUseBlock:
			parts = append(parts, llm.ToolUsePart{ID: v.ID, Name: v.Name, Input: v.Input})
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{ID: v.ID, Name: v.Name, Payload: toolCallPayload(v.Input)})
		}
	}
	resp.Messages = []llm.Message{{Role: llm.RoleAssistant, Parts: parts}}
	return resp
}

func toolCallPayload(input any) json.RawMessage {
	data, err := json.Marshal(input)
	if err != nil {
		return nil
	}
	return data
}
