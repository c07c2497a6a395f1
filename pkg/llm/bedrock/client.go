// Package bedrock adapts the AWS Bedrock Converse API
// (aws-sdk-go-v2/service/bedrockruntime) to llm.Operations: split messages
// into system/conversational blocks, encode tool schemas into Bedrock's
// ToolConfiguration, and translate Converse responses back into
// llm.Response. Grounded on the teacher's equivalent features/model/bedrock
// adapter, narrowed to the Message/Part surface pkg/llm actually defines.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/llm"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client required
// by the adapter. It is satisfied by *bedrockruntime.Client so callers can
// pass either the real client or a mock in tests.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	// DefaultModel is the Bedrock model identifier (e.g., an Anthropic or
	// Nova inference profile ARN) used for every call.
	DefaultModel string

	// MaxTokens sets the completion cap when positive.
	MaxTokens int

	// Temperature is applied to every request when positive.
	Temperature float32
}

// Client implements llm.Operations on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTok       int
	temp         float32
}

// New builds a Client from a Bedrock runtime client and Options.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	return &Client{
		runtime:      runtime,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// SupportsStreaming always returns true: Converse and ConverseStream are
// both available for every model the adapter can address.
func (c *Client) SupportsStreaming() bool { return true }

// Complete issues a Converse request and translates the response.
func (c *Client) Complete(ctx context.Context, interaction *llm.Interaction) (*llm.Response, error) {
	messages, system, toolConfig, err := c.prepareRequest(ctx, interaction)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.defaultModel),
		Messages: messages,
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	if cfg := c.inferenceConfig(); cfg != nil {
		input.InferenceConfig = cfg
	}
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, classifyError(fmt.Errorf("bedrock converse: %w", err))
	}
	return translateOutput(output)
}

// Stream invokes ConverseStream and adapts incremental events into
// llm.StreamEvents.
func (c *Client) Stream(ctx context.Context, interaction *llm.Interaction) (<-chan llm.StreamEvent, error) {
	messages, system, toolConfig, err := c.prepareRequest(ctx, interaction)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.defaultModel),
		Messages: messages,
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	if cfg := c.inferenceConfig(); cfg != nil {
		input.InferenceConfig = cfg
	}
	out, err := c.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, classifyError(fmt.Errorf("bedrock converse stream: %w", err))
	}
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("bedrock: stream output missing event stream")
	}

	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		defer stream.Close()
		var text string
		for evt := range stream.Events() {
			switch v := evt.(type) {
			case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
				if delta, ok := v.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok && delta.Value != "" {
					text += delta.Value
					ch <- llm.StreamEvent{Kind: llm.StreamObject, Object: llm.Message{Role: llm.RoleAssistant, Parts: []llm.Part{llm.TextPart{Text: delta.Value}}}}
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- llm.StreamEvent{Kind: llm.StreamEnd, Err: classifyError(fmt.Errorf("bedrock converse stream: %w", err))}
			return
		}
		ch <- llm.StreamEvent{Kind: llm.StreamEnd, Response: &llm.Response{
			Messages: []llm.Message{{Role: llm.RoleAssistant, Parts: []llm.Part{llm.TextPart{Text: text}}}},
		}}
	}()
	return ch, nil
}

// classifyError recognizes AWS throttling and HTTP 429 responses from a
// Converse/ConverseStream failure and wraps them as errorx.ExternalTransient
// so qos.Classify retries them instead of treating every Bedrock failure as
// fatal. Grounded on the teacher's isRateLimited helper.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return errorx.Wrap(errorx.ExternalTransient, "bedrock rate limited", err)
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429 {
		return errorx.Wrap(errorx.ExternalTransient, "bedrock rate limited", err)
	}
	return err
}

func (c *Client) inferenceConfig() *brtypes.InferenceConfiguration {
	if c.maxTok <= 0 && c.temp <= 0 {
		return nil
	}
	cfg := &brtypes.InferenceConfiguration{}
	if c.maxTok > 0 {
		maxTok := int32(c.maxTok)
		cfg.MaxTokens = &maxTok
	}
	if c.temp > 0 {
		temp := c.temp
		cfg.Temperature = &temp
	}
	return cfg
}

func (c *Client) prepareRequest(ctx context.Context, interaction *llm.Interaction) ([]brtypes.Message, []brtypes.SystemContentBlock, *brtypes.ToolConfiguration, error) {
	messages, err := interaction.Resolve(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(messages) == 0 {
		return nil, nil, nil, errors.New("bedrock: messages are required")
	}
	conversation, system, err := encodeMessages(messages)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(conversation) == 0 {
		return nil, nil, nil, errors.New("bedrock: at least one user/assistant message is required")
	}
	toolConfig := encodeTools(interaction.ToolDefinitions())
	return conversation, system, toolConfig, nil
}

func encodeMessages(msgs []llm.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	conversation := make([]brtypes.Message, 0, len(msgs))
	system := make([]brtypes.SystemContentBlock, 0, len(msgs))

	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			for _, p := range m.Parts {
				if t, ok := p.(llm.TextPart); ok && t.Text != "" {
					system = append(system, &brtypes.SystemContentBlockMemberText{Value: t.Text})
				}
			}
			continue
		}

		blocks := make([]brtypes.ContentBlock, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch v := part.(type) {
			case llm.TextPart:
				if v.Text != "" {
					blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
				}
			case llm.ToolUsePart:
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(v.ID),
					Name:      aws.String(v.Name),
					Input:     document.NewLazyDocument(v.Input),
				}})
			case llm.ToolResultPart:
				blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: encodeToolResult(v)})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		var role brtypes.ConversationRole
		switch m.Role {
		case llm.RoleUser:
			role = brtypes.ConversationRoleUser
		case llm.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, nil, fmt.Errorf("bedrock: unsupported message role %q", m.Role)
		}
		conversation = append(conversation, brtypes.Message{Role: role, Content: blocks})
	}
	return conversation, system, nil
}

func encodeToolResult(v llm.ToolResultPart) brtypes.ToolResultBlock {
	var text string
	switch c := v.Content.(type) {
	case nil:
		text = ""
	case string:
		text = c
	case []byte:
		text = string(c)
	default:
		if data, err := json.Marshal(c); err == nil {
			text = string(data)
		}
	}
	status := brtypes.ToolResultStatusSuccess
	if v.IsError {
		status = brtypes.ToolResultStatusError
	}
	return brtypes.ToolResultBlock{
		ToolUseId: aws.String(v.ToolUseID),
		Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: text}},
		Status:    status,
	}
}

func encodeTools(defs []llm.ToolDefinition) *brtypes.ToolConfiguration {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		var schemaDoc document.Interface
		if def.InputSchema != nil {
			schemaDoc = document.NewLazyDocument(def.InputSchema)
		} else {
			schemaDoc = document.NewLazyDocument(map[string]any{"type": "object"})
		}
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(def.Name),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: schemaDoc},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func translateOutput(output *bedrockruntime.ConverseOutput) (*llm.Response, error) {
	if output == nil {
		return nil, errors.New("bedrock: response is nil")
	}
	resp := &llm.Response{}
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	var parts []llm.Part
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			if v.Value == "" {
				continue
			}
			parts = append(parts, llm.TextPart{Text: v.Value})
		case *brtypes.ContentBlockMemberToolUse:
			payload := decodeDocument(v.Value.Input)
			var name, id string
			if v.Value.Name != nil {
				name = *v.Value.Name
			}
			if v.Value.ToolUseId != nil {
				id = *v.Value.ToolUseId
			}
			var input any
			_ = json.Unmarshal(payload, &input)
			parts = append(parts, llm.ToolUsePart{ID: id, Name: name, Input: input})
			resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{ID: id, Name: name, Payload: payload})
		}
	}
	resp.Messages = []llm.Message{{Role: llm.RoleAssistant, Parts: parts}}
	if usage := output.Usage; usage != nil {
		resp.Usage = llm.TokenUsage{
			InputTokens:  int(ptrValue(usage.InputTokens)),
			OutputTokens: int(ptrValue(usage.OutputTokens)),
			TotalTokens:  int(ptrValue(usage.TotalTokens)),
		}
	}
	return resp, nil
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	var raw json.RawMessage
	if err := doc.UnmarshalSmithyDocument(&raw); err != nil {
		return nil
	}
	return raw
}

func ptrValue(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}
