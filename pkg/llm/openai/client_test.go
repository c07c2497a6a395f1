package openai

import (
	"context"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	oai "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/llm"
)

type stubCompletionsClient struct {
	lastParams oai.ChatCompletionNewParams
	resp       *oai.ChatCompletion
	err        error
}

func (s *stubCompletionsClient) New(_ context.Context, body oai.ChatCompletionNewParams, _ ...option.RequestOption) (*oai.ChatCompletion, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubCompletionsClient) NewStreaming(_ context.Context, body oai.ChatCompletionNewParams, _ ...option.RequestOption) *ssestream.Stream[oai.ChatCompletionChunk] {
	s.lastParams = body
	return nil
}

func TestComplete_TextOnly(t *testing.T) {
	stub := &stubCompletionsClient{resp: &oai.ChatCompletion{
		Choices: []oai.ChatCompletionChoice{{
			Message: oai.ChatCompletionMessage{Content: "world"},
		}},
		Usage: oai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	cl, err := New(stub, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), &llm.Interaction{
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart{Text: "hello"}}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "world", resp.Messages[0].Text())
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o", string(stub.lastParams.Model))
}

func TestNew_RequiresCompletionsClientAndDefaultModel(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "gpt-4o"})
	assert.Error(t, err)

	_, err = New(&stubCompletionsClient{}, Options{})
	assert.Error(t, err)
}

func TestSupportsStreaming(t *testing.T) {
	cl, err := New(&stubCompletionsClient{}, Options{DefaultModel: "gpt-4o"})
	require.NoError(t, err)
	assert.True(t, cl.SupportsStreaming())
}
