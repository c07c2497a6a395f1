// Package openai adapts github.com/openai/openai-go's Chat Completions API to
// llm.Operations. Structurally grounded on the teacher's other model adapters
// (captured minimal client interface, Options, New/NewFromAPIKey,
// Complete/Stream translation) — see DESIGN.md for why this one could not be
// grounded on a verbatim teacher file: the example pack's openai adapter
// targets a different SDK (sashabaranov/go-openai) than the one this module
// actually depends on (openai/openai-go).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/embabel/agent-core-go/pkg/llm"
)

// CompletionsClient captures the subset of the openai-go client the adapter
// needs. It is satisfied by client.Chat.Completions so callers can pass
// either a real client or a mock in tests.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// Options configures the OpenAI adapter.
type Options struct {
	// DefaultModel is the model identifier used for every call, e.g.
	// openai.ChatModelGPT4o.
	DefaultModel string

	// MaxTokens caps the completion length when positive.
	MaxTokens int

	// Temperature is applied to every request when positive.
	Temperature float64
}

// Client implements llm.Operations on top of OpenAI Chat Completions.
type Client struct {
	completions  CompletionsClient
	defaultModel string
	maxTok       int
	temp         float64
}

// New builds a Client from a Chat Completions client and Options.
func New(completions CompletionsClient, opts Options) (*Client, error) {
	if completions == nil {
		return nil, errors.New("openai: completions client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model identifier is required")
	}
	return &Client{
		completions:  completions,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a Client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	oc := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel})
}

// SupportsStreaming always returns true: Chat Completions supports streaming
// for every chat model the adapter can address.
func (c *Client) SupportsStreaming() bool { return true }

// Complete issues a non-streaming Chat Completions request.
func (c *Client) Complete(ctx context.Context, interaction *llm.Interaction) (*llm.Response, error) {
	params, err := c.prepareRequest(ctx, interaction)
	if err != nil {
		return nil, err
	}
	resp, err := c.completions.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("openai chat.completions.new: %w", err)
	}
	return translateCompletion(resp), nil
}

// Stream invokes Chat Completions streaming and adapts chunk deltas into
// llm.StreamEvents.
func (c *Client) Stream(ctx context.Context, interaction *llm.Interaction) (<-chan llm.StreamEvent, error) {
	params, err := c.prepareRequest(ctx, interaction)
	if err != nil {
		return nil, err
	}
	stream := c.completions.NewStreaming(ctx, *params)

	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()
		var text string
		toolCalls := map[int64]*llm.ToolCall{}
		var order []int64
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta
			if delta.Content != "" {
				text += delta.Content
				ch <- llm.StreamEvent{Kind: llm.StreamObject, Object: llm.Message{Role: llm.RoleAssistant, Parts: []llm.Part{llm.TextPart{Text: delta.Content}}}}
			}
			for _, tc := range delta.ToolCalls {
				idx := tc.Index
				cur, ok := toolCalls[idx]
				if !ok {
					cur = &llm.ToolCall{}
					toolCalls[idx] = cur
					order = append(order, idx)
				}
				if tc.ID != "" {
					cur.ID = tc.ID
				}
				if tc.Function.Name != "" {
					cur.Name = tc.Function.Name
				}
				cur.Payload = append(cur.Payload, []byte(tc.Function.Arguments)...)
			}
		}
		if err := stream.Err(); err != nil {
			ch <- llm.StreamEvent{Kind: llm.StreamEnd, Err: fmt.Errorf("openai chat.completions.new stream: %w", err)}
			return
		}
		parts := []llm.Part{llm.TextPart{Text: text}}
		var calls []llm.ToolCall
		for _, idx := range order {
			tc := toolCalls[idx]
			var input any
			_ = json.Unmarshal(tc.Payload, &input)
			parts = append(parts, llm.ToolUsePart{ID: tc.ID, Name: tc.Name, Input: input})
			calls = append(calls, *tc)
		}
		ch <- llm.StreamEvent{Kind: llm.StreamEnd, Response: &llm.Response{
			Messages:  []llm.Message{{Role: llm.RoleAssistant, Parts: parts}},
			ToolCalls: calls,
		}}
	}()
	return ch, nil
}

func (c *Client) prepareRequest(ctx context.Context, interaction *llm.Interaction) (*openai.ChatCompletionNewParams, error) {
	messages, err := interaction.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	encoded, err := encodeMessages(messages)
	if err != nil {
		return nil, err
	}
	params := &openai.ChatCompletionNewParams{
		Model:    c.defaultModel,
		Messages: encoded,
	}
	if c.maxTok > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTok))
	}
	if c.temp > 0 {
		params.Temperature = openai.Float(c.temp)
	}
	if tools := encodeTools(interaction.ToolDefinitions()); len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

func encodeMessages(msgs []llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		text := m.Text()
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(text))
		case llm.RoleUser:
			out = append(out, openai.UserMessage(text))
		case llm.RoleAssistant:
			out = append(out, openai.AssistantMessage(text))
		default:
			return nil, fmt.Errorf("openai: unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func encodeTools(defs []llm.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		params := openai.FunctionParameters{}
		if def.InputSchema != nil {
			data, err := json.Marshal(def.InputSchema)
			if err == nil {
				_ = json.Unmarshal(data, &params)
			}
		}
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  params,
		}))
	}
	return out
}

func translateCompletion(resp *openai.ChatCompletion) *llm.Response {
	if resp == nil || len(resp.Choices) == 0 {
		return &llm.Response{}
	}
	msg := resp.Choices[0].Message
	var parts []llm.Part
	if msg.Content != "" {
		parts = append(parts, llm.TextPart{Text: msg.Content})
	}
	var calls []llm.ToolCall
	for _, tc := range msg.ToolCalls {
		payload := json.RawMessage(tc.Function.Arguments)
		var input any
		_ = json.Unmarshal(payload, &input)
		parts = append(parts, llm.ToolUsePart{ID: tc.ID, Name: tc.Function.Name, Input: input})
		calls = append(calls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Payload: payload})
	}
	return &llm.Response{
		Messages:  []llm.Message{{Role: llm.RoleAssistant, Parts: parts}},
		ToolCalls: calls,
		Usage: llm.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
}
