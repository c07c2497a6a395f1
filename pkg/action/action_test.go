package action_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/action"
	"github.com/embabel/agent-core-go/pkg/blackboard"
	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/qos"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

type greeting struct{ Text string }

func TestRuntime_Execute_ResolvesInputsAndBindsOutputs(t *testing.T) {
	type name struct{ Value string }

	bb := blackboard.New()
	bb.Bind("name", name{Value: "Bob"})

	act := planning.NewAction("Greet",
		planning.WithInputs(planning.Binding{Name: "name", Type: "name"}),
		planning.WithOutputs(planning.Binding{Name: "greeting", Type: "greeting"}))

	rt := action.NewRuntime(qos.Policy{MaxAttempts: 1}, nil)
	result := rt.Execute(context.Background(), bb, worldstate.Empty(), act,
		func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			n := inputs["name"].(name)
			return map[string]any{"greeting": greeting{Text: "hello " + n.Value}}, nil
		})

	require.Equal(t, action.Succeeded, result.Status)
	v, ok := bb.Lookup("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello Bob", v.(greeting).Text)
}

func TestRuntime_Execute_MissingInputFailsWithoutInvokingBody(t *testing.T) {
	bb := blackboard.New()
	act := planning.NewAction("Greet",
		planning.WithInputs(planning.Binding{Name: "name", Type: "name"}))

	called := false
	rt := action.NewRuntime(qos.Policy{MaxAttempts: 1}, nil)
	result := rt.Execute(context.Background(), bb, worldstate.Empty(), act,
		func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			called = true
			return nil, nil
		})

	assert.Equal(t, action.Failed, result.Status)
	assert.False(t, called)
	kind, ok := errorx.KindOf(result.Err)
	require.True(t, ok)
	assert.Equal(t, errorx.InputMissing, kind)
}

func TestRuntime_Execute_PreconditionNoLongerHoldingFailsFast(t *testing.T) {
	bb := blackboard.New()
	act := planning.NewAction("Feed",
		planning.WithPreconditions(condition.NewEffectSpec("cageOpen", condition.TRUE)))

	rt := action.NewRuntime(qos.Policy{MaxAttempts: 1}, nil)
	ws := worldstate.FromMap(map[string]condition.Determination{"cageOpen": condition.FALSE})
	result := rt.Execute(context.Background(), bb, ws, act,
		func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return nil, nil
		})

	assert.Equal(t, action.Failed, result.Status)
	kind, ok := errorx.KindOf(result.Err)
	require.True(t, ok)
	assert.Equal(t, errorx.PreconditionViolated, kind)
}

func TestRuntime_Execute_RetriesTransientFailures(t *testing.T) {
	bb := blackboard.New()
	act := planning.NewAction("Call")

	attempts := 0
	rt := action.NewRuntime(qos.Policy{MaxAttempts: 3, InitialBackoff: 0}, nil)
	result := rt.Execute(context.Background(), bb, worldstate.Empty(), act,
		func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			attempts++
			if attempts < 2 {
				return nil, errors.New("HTTP 429 rate limit exceeded")
			}
			return map[string]any{}, nil
		})

	assert.Equal(t, action.Succeeded, result.Status)
	assert.Equal(t, 2, attempts)
}

func TestRuntime_Execute_PauseAndWaitSignals(t *testing.T) {
	bb := blackboard.New()
	act := planning.NewAction("Confirm")
	rt := action.NewRuntime(qos.Policy{MaxAttempts: 1}, nil)

	paused := rt.Execute(context.Background(), bb, worldstate.Empty(), act,
		func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return nil, action.ErrPause
		})
	assert.Equal(t, action.Paused, paused.Status)

	waiting := rt.Execute(context.Background(), bb, worldstate.Empty(), act,
		func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return nil, action.ErrWait
		})
	assert.Equal(t, action.Waiting, waiting.Status)
}
