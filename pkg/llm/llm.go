// Package llm implements the collaborator boundary described in spec.md
// §4.7: a provider-agnostic Operations contract, the Interaction an agent
// assembles before calling it, and the streaming event sum type providers
// emit. Message/part shapes are generalized from the teacher's
// runtime/agent/model package, narrowed to what spec.md actually names.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is implemented by every kind of message content block.
type Part interface{ isPart() }

// TextPart is plain text content.
type TextPart struct{ Text string }

func (TextPart) isPart() {}

// ImagePart carries an image attached to a user message, per spec.md
// §4.7's "stored images".
type ImagePart struct {
	Format string
	Bytes  []byte
}

func (ImagePart) isPart() {}

// ToolUsePart declares a tool invocation requested by the model.
type ToolUsePart struct {
	ID    string
	Name  string
	Input any
}

func (ToolUsePart) isPart() {}

// ToolResultPart carries a tool result back to the model.
type ToolResultPart struct {
	ToolUseID string
	Content   any
	IsError   bool
}

func (ToolResultPart) isPart() {}

// Message is a single ordered chat message.
type Message struct {
	Role  Role
	Parts []Part
}

// Text returns the concatenation of every TextPart in the message, for
// callers that don't need the full part structure.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}

// ToolDefinition describes a tool exposed to the model, with its
// arguments documented as a JSON Schema.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema any
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID      string
	Name    string
	Payload json.RawMessage
}

// ToolCallback is a function an Interaction makes available to the model
// as a callable tool, independent of whether the tool happens to be
// planning-goal-backed (see GoalTools) or an ad-hoc capability.
type ToolCallback struct {
	Definition ToolDefinition
	Invoke     func(ctx context.Context, payload json.RawMessage) (any, error)
}

// PromptContributor augments an Interaction's message list before it is
// sent, e.g. to inject retrieved context or system guidance.
type PromptContributor func(ctx context.Context, messages []Message) ([]Message, error)

// TokenUsage reports token consumption for a single Operations call.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is the result of a non-streaming Complete call.
type Response struct {
	Messages  []Message
	ToolCalls []ToolCall
	Usage     TokenUsage
}

// StreamEventKind discriminates the StreamEvent sum type.
type StreamEventKind int

const (
	// StreamObject carries an incremental assistant message fragment.
	StreamObject StreamEventKind = iota
	// StreamThinking carries incremental reasoning text.
	StreamThinking
	// StreamEnd signals the stream is complete; Response is populated.
	StreamEnd
)

// StreamEvent is a single item from a streaming Complete call. Exactly the
// fields relevant to Kind are populated.
type StreamEvent struct {
	Kind     StreamEventKind
	Object   Message
	Thinking string
	Response *Response
	Err      error
}

// Interaction assembles everything an Operations call needs: the message
// transcript, declared and ad-hoc tool callbacks, prompt contributors, and
// an identity derived from the operation and output type it serves, per
// spec.md §4.7.
type Interaction struct {
	Messages           []Message
	Tools              []ToolCallback
	ToolGroups         []string
	PromptContributors []PromptContributor
	OperationName      string
	OutputTypeName     string
}

// InteractionID identifies an Interaction for caching/logging purposes, as
// operationName + "-" + outputTypeName.
type InteractionID string

// ID computes the Interaction's InteractionID.
func (i *Interaction) ID() InteractionID {
	return InteractionID(i.OperationName + "-" + i.OutputTypeName)
}

// Resolve applies every registered PromptContributor in order, producing
// the final message list to send to the model.
func (i *Interaction) Resolve(ctx context.Context) ([]Message, error) {
	messages := append([]Message(nil), i.Messages...)
	for _, contribute := range i.PromptContributors {
		resolved, err := contribute(ctx, messages)
		if err != nil {
			return nil, err
		}
		messages = resolved
	}
	return messages, nil
}

// ToolDefinitions returns the ToolDefinition for every registered
// ToolCallback, in registration order.
func (i *Interaction) ToolDefinitions() []ToolDefinition {
	out := make([]ToolDefinition, len(i.Tools))
	for idx, t := range i.Tools {
		out[idx] = t.Definition
	}
	return out
}

// Operations is the collaborator interface an agent process calls into to
// reach a model, per spec.md §4.7.
type Operations interface {
	Complete(ctx context.Context, interaction *Interaction) (*Response, error)
	Stream(ctx context.Context, interaction *Interaction) (<-chan StreamEvent, error)
	SupportsStreaming() bool
}

var streamingCache sync.Map // reflect.Type -> bool

// CachedSupportsStreaming probes ops.SupportsStreaming() once per
// reflect.Type and caches the result with no TTL, per SPEC_FULL.md §9
// open question 5. Callers that always want a live probe should call
// ops.SupportsStreaming() directly instead.
func CachedSupportsStreaming(ops Operations) bool {
	t := reflect.TypeOf(ops)
	if v, ok := streamingCache.Load(t); ok {
		return v.(bool)
	}
	supported := ops.SupportsStreaming()
	streamingCache.Store(t, supported)
	return supported
}

// InvalidateStreamingCache forces CachedSupportsStreaming to re-probe ops
// on its next call, for callers that swap configuration at runtime rather
// than restarting the process (SPEC_FULL.md §9 open question 5).
func InvalidateStreamingCache(ops Operations) {
	streamingCache.Delete(reflect.TypeOf(ops))
}

// Stream calls ops.Stream if supported, or synthesizes a single-event
// stream from Complete otherwise, returning errorx.UnsupportedOperation
// only when the caller explicitly required streaming support via
// requireStreaming.
func Stream(ctx context.Context, ops Operations, interaction *Interaction, requireStreaming bool) (<-chan StreamEvent, error) {
	if CachedSupportsStreaming(ops) {
		return ops.Stream(ctx, interaction)
	}
	if requireStreaming {
		return nil, errorx.Newf(errorx.UnsupportedOperation,
			"operations value %T does not support streaming", ops)
	}
	resp, err := ops.Complete(ctx, interaction)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Kind: StreamEnd, Response: resp}
	close(ch)
	return ch, nil
}

// ToolNamingStrategy derives a model-visible tool name for a goal.
type ToolNamingStrategy func(goal *planning.Goal) string

// DefaultToolNaming sanitizes a goal's name into a lowercase,
// underscore-separated identifier safe for every major provider's tool
// name grammar.
func DefaultToolNaming(goal *planning.Goal) string {
	name := goal.Name()
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			if len(out) > 0 && out[len(out)-1] != '_' {
				out = append(out, '_')
			}
			out = append(out, r-'A'+'a')
		default:
			if len(out) > 0 && out[len(out)-1] != '_' {
				out = append(out, '_')
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '_' {
		out = out[:len(out)-1]
	}
	return fmt.Sprintf("achieve_%s", string(out))
}

// GoalTools returns one ToolCallback per currently achievable goal in
// system — a goal is achievable if it is not already satisfied by ws and
// some single action applicable in ws satisfies it once applied — per
// spec.md §4.7's "goals as tools". Goals whose Name() is a key of exclude
// are skipped; exclude is matched against goal names only, not against any
// Go type. Naming is pluggable via naming, which defaults to
// DefaultToolNaming when nil.
func GoalTools(system *planning.System, ws worldstate.WorldState, exclude map[string]struct{}, naming ToolNamingStrategy, invoke func(goal *planning.Goal) func(ctx context.Context, payload json.RawMessage) (any, error)) []ToolCallback {
	if naming == nil {
		naming = DefaultToolNaming
	}
	var out []ToolCallback
	for _, goal := range system.Goals() {
		if _, skip := exclude[goal.Name()]; skip {
			continue
		}
		if goal.IsSatisfiedBy(ws) {
			continue
		}
		if !achievable(system, ws, goal) {
			continue
		}
		out = append(out, ToolCallback{
			Definition: ToolDefinition{
				Name:        naming(goal),
				Description: fmt.Sprintf("Work toward the %q goal", goal.Name()),
			},
			Invoke: invoke(goal),
		})
	}
	return out
}

// achievable reports whether any single action in system is applicable in
// ws and, once its effects are applied to ws, satisfies goal. Goals that
// need two or more actions are not reported as achievable.
func achievable(system *planning.System, ws worldstate.WorldState, goal *planning.Goal) bool {
	for _, action := range system.Actions() {
		if !action.IsApplicable(ws) {
			continue
		}
		if goal.IsSatisfiedBy(action.Apply(ws)) {
			return true
		}
	}
	return false
}
