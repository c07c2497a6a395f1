package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/llm"
)

type stubRuntime struct {
	captured *bedrockruntime.ConverseInput
	output   *bedrockruntime.ConverseOutput
	err      error
}

func (s *stubRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.captured = params
	return s.output, s.err
}

func (s *stubRuntime) ConverseStream(_ context.Context, _ *bedrockruntime.ConverseStreamInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, nil
}

func TestComplete_TextAndToolUse(t *testing.T) {
	stub := &stubRuntime{output: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role: brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: "hello"},
				&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String("tool-1"),
					Name:      aws.String("calc.tool"),
					Input:     document.NewLazyDocument(map[string]any{"value": 42}),
				}},
			},
		}},
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(100),
			OutputTokens: aws.Int32(20),
			TotalTokens:  aws.Int32(120),
		},
	}}

	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-3"})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), &llm.Interaction{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}}},
		Tools: []llm.ToolCallback{{
			Definition: llm.ToolDefinition{Name: "calc.tool", Description: "calculator"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hello", resp.Messages[0].Text())
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "calc.tool", resp.ToolCalls[0].Name)
	assert.Equal(t, "tool-1", resp.ToolCalls[0].ID)
	assert.Equal(t, 120, resp.Usage.TotalTokens)

	require.NotNil(t, stub.captured)
	assert.Equal(t, "anthropic.claude-3", *stub.captured.ModelId)
}

func TestComplete_ThrottlingExceptionIsClassifiedAsExternalTransient(t *testing.T) {
	stub := &stubRuntime{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"}}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-3"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), &llm.Interaction{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}}},
	})
	require.Error(t, err)
	kind, ok := errorx.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errorx.ExternalTransient, kind)
}

func TestNew_RequiresRuntimeAndDefaultModel(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "x"})
	assert.Error(t, err)

	_, err = New(&stubRuntime{}, Options{})
	assert.Error(t, err)
}
