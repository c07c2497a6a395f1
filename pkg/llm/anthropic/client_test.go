package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/llm"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubMessagesClient) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	s.lastParams = body
	return ssestream.NewStream[sdk.MessageStreamEventUnion](&noopDecoder{}, nil)
}

type noopDecoder struct{}

func (n *noopDecoder) Event() ssestream.Event { return ssestream.Event{} }
func (n *noopDecoder) Next() bool             { return false }
func (n *noopDecoder) Close() error           { return nil }
func (n *noopDecoder) Err() error             { return nil }

func TestComplete_TextOnly(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "world"},
		},
		Usage: sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	cl, err := New(stub, Options{DefaultModel: "claude-3.5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	interaction := &llm.Interaction{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hello"}}}},
	}
	resp, err := cl.Complete(context.Background(), interaction)
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "world", resp.Messages[0].Text())
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestComplete_ToolUse(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "tool_use", Name: "achieve_goal", ID: "tool-1", Input: json.RawMessage(`{"x":1}`)},
		},
	}}
	cl, err := New(stub, Options{DefaultModel: "claude-3.5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	interaction := &llm.Interaction{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "call tool"}}}},
		Tools: []llm.ToolCallback{{
			Definition: llm.ToolDefinition{Name: "achieve_goal", Description: "test tool", InputSchema: json.RawMessage(`{"type":"object"}`)},
		}},
	}
	resp, err := cl.Complete(context.Background(), interaction)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "achieve_goal", resp.ToolCalls[0].Name)
	assert.Equal(t, "tool-1", resp.ToolCalls[0].ID)
}

func TestComplete_PropagatesTransportError(t *testing.T) {
	stub := &stubMessagesClient{err: errors.New("boom")}
	cl, err := New(stub, Options{DefaultModel: "claude-3.5-sonnet", MaxTokens: 64})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), &llm.Interaction{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hi"}}}},
	})
	require.Error(t, err)
}

func TestNew_RequiresMessagesClientAndDefaultModel(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "x", MaxTokens: 1})
	assert.Error(t, err)

	_, err = New(&stubMessagesClient{}, Options{MaxTokens: 1})
	assert.Error(t, err)

	_, err = New(&stubMessagesClient{}, Options{DefaultModel: "x"})
	assert.Error(t, err)
}

func TestSupportsStreaming(t *testing.T) {
	cl, err := New(&stubMessagesClient{}, Options{DefaultModel: "x", MaxTokens: 1})
	require.NoError(t, err)
	assert.True(t, cl.SupportsStreaming())
}
