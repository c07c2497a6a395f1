package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/action"
	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/process"
	"github.com/embabel/agent-core-go/pkg/qos"
)

// zooAgent builds the two-step OpenCage/Feed agent used across spec.md §8
// scenarios 1-3: Feed requires cageOpen, OpenCage asserts it, and the
// ElephantFed goal is worth reaching Feed's effect.
func zooAgent(t *testing.T) *planning.Agent {
	t.Helper()
	openCage := planning.NewAction("OpenCage",
		planning.WithEffects(condition.NewEffectSpec("cageOpen", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	feed := planning.NewAction("Feed",
		planning.WithPreconditions(condition.NewEffectSpec("cageOpen", condition.TRUE)),
		planning.WithEffects(condition.NewEffectSpec("elephantFed", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	goal := planning.NewGoal("ElephantFed",
		planning.WithGoalPreconditions(condition.NewEffectSpec("elephantFed", condition.TRUE)),
		planning.WithGoalValue(planning.Constant(10)))

	agent, err := planning.NewBuilder("zoo").
		Actions(openCage, feed).
		Goal(goal).
		Build()
	require.NoError(t, err)
	return agent
}

func zooBodies() map[string]action.Body {
	return map[string]action.Body{
		"OpenCage": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
		"Feed": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}
}

func TestSequentialDriver_TwoStepPlanReachesCompleted(t *testing.T) {
	agent := zooAgent(t)
	p, err := process.New("p1", agent, zooBodies(), process.Options{
		PlannerType: process.GOAP,
		RetryPolicy: qos.Policy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	err = (process.SequentialDriver{}).Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, process.Completed, p.StatusValue())
	names := make([]string, 0, 2)
	for _, step := range p.History() {
		names = append(names, step.ActionName)
	}
	assert.Equal(t, []string{"OpenCage", "Feed"}, names)
}

func TestSequentialDriver_UnreachableGoalWithOnStuckEndsTerminated(t *testing.T) {
	feed := planning.NewAction("Feed",
		planning.WithPreconditions(condition.NewEffectSpec("cageOpen", condition.TRUE)),
		planning.WithEffects(condition.NewEffectSpec("elephantFed", condition.TRUE)))
	goal := planning.NewGoal("ElephantFed",
		planning.WithGoalPreconditions(condition.NewEffectSpec("elephantFed", condition.TRUE)),
		planning.WithGoalValue(planning.Constant(10)))
	agent, err := planning.NewBuilder("zoo").Actions(feed).Goal(goal).Build()
	require.NoError(t, err)

	p, err := process.New("p2", agent, zooBodies(), process.Options{
		PlannerType:              process.GOAP,
		RetryPolicy:              qos.Policy{MaxAttempts: 1},
		EarlyTerminationPolicies: []process.EarlyTerminationPolicy{process.OnStuck()},
	})
	require.NoError(t, err)

	err = (process.SequentialDriver{}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, process.Terminated, p.StatusValue())
}

func TestConcurrentDriver_DispatchesIndependentActionsInOneTick(t *testing.T) {
	var openCageAt time.Time
	openCage := planning.NewAction("OpenCage",
		planning.WithEffects(condition.NewEffectSpec("cageOpen", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	feed := planning.NewAction("Feed",
		planning.WithPreconditions(condition.NewEffectSpec("cageOpen", condition.TRUE)),
		planning.WithEffects(condition.NewEffectSpec("elephantFed", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	goal := planning.NewGoal("ElephantFed",
		planning.WithGoalPreconditions(condition.NewEffectSpec("elephantFed", condition.TRUE)),
		planning.WithGoalValue(planning.Constant(10)))

	agent, err := planning.NewBuilder("zoo").
		Actions(openCage, feed).
		Goal(goal).
		Build()
	require.NoError(t, err)

	bodies := map[string]action.Body{
		"OpenCage": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			openCageAt = time.Now()
			return map[string]any{}, nil
		},
		"Feed": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	}

	p, err := process.New("p3", agent, bodies, process.Options{
		PlannerType: process.GOAP,
		RetryPolicy: qos.Policy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	err = (process.ConcurrentDriver{}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, process.Completed, p.StatusValue())
	assert.False(t, openCageAt.IsZero())
}

// TestConcurrentDriver_TrulyIndependentActionsOverlapInASingleTick builds
// two actions with no precondition ordering between them (unlike
// OpenCage->Feed above, which can only ever run in successive ticks) and
// proves they were dispatched into the same tick's batch by observing
// their execution windows overlap in wall-clock time.
func TestConcurrentDriver_TrulyIndependentActionsOverlapInASingleTick(t *testing.T) {
	const hold = 50 * time.Millisecond
	var hayStart, hayEnd, waterStart, waterEnd time.Time

	giveHay := planning.NewAction("GiveHay",
		planning.WithEffects(condition.NewEffectSpec("hayGiven", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	giveWater := planning.NewAction("GiveWater",
		planning.WithEffects(condition.NewEffectSpec("waterGiven", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	goal := planning.NewGoal("Fed",
		planning.WithGoalPreconditions(condition.NewEffectSpec("hayGiven", condition.TRUE, "waterGiven", condition.TRUE)),
		planning.WithGoalValue(planning.Constant(10)))

	agent, err := planning.NewBuilder("zoo").
		Actions(giveHay, giveWater).
		Goal(goal).
		Build()
	require.NoError(t, err)

	bodies := map[string]action.Body{
		"GiveHay": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			hayStart = time.Now()
			time.Sleep(hold)
			hayEnd = time.Now()
			return map[string]any{}, nil
		},
		"GiveWater": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			waterStart = time.Now()
			time.Sleep(hold)
			waterEnd = time.Now()
			return map[string]any{}, nil
		},
	}

	p, err := process.New("p3b", agent, bodies, process.Options{
		PlannerType: process.GOAP,
		RetryPolicy: qos.Policy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	err = (process.ConcurrentDriver{}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, process.Completed, p.StatusValue())

	require.False(t, hayStart.IsZero())
	require.False(t, waterStart.IsZero())
	assert.True(t, hayStart.Before(waterEnd) && waterStart.Before(hayEnd),
		"GiveHay and GiveWater should have overlapped, proving a single-tick concurrent dispatch")
}

func TestConcurrentDriver_CollidingOutputBindingsFailBothActions(t *testing.T) {
	writeA := planning.NewAction("WriteA",
		planning.WithOutputs(planning.Binding{Name: "result", Type: "string"}),
		planning.WithEffects(condition.NewEffectSpec("aDone", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	writeB := planning.NewAction("WriteB",
		planning.WithOutputs(planning.Binding{Name: "result", Type: "string"}),
		planning.WithEffects(condition.NewEffectSpec("bDone", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	goal := planning.NewGoal("BothDone",
		planning.WithGoalPreconditions(condition.NewEffectSpec("aDone", condition.TRUE, "bDone", condition.TRUE)),
		planning.WithGoalValue(planning.Constant(10)))

	agent, err := planning.NewBuilder("zoo").
		Actions(writeA, writeB).
		Goal(goal).
		Build()
	require.NoError(t, err)

	bodies := map[string]action.Body{
		"WriteA": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"result": "a"}, nil
		},
		"WriteB": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return map[string]any{"result": "b"}, nil
		},
	}

	p, err := process.New("p3c", agent, bodies, process.Options{
		PlannerType: process.GOAP,
		RetryPolicy: qos.Policy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	err = (process.ConcurrentDriver{}).Run(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, process.Failed, p.StatusValue())
}

func TestProcess_FailedActionEndsProcessFailed(t *testing.T) {
	boom := planning.NewAction("Boom",
		planning.WithEffects(condition.NewEffectSpec("done", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))
	goal := planning.NewGoal("Done",
		planning.WithGoalPreconditions(condition.NewEffectSpec("done", condition.TRUE)),
		planning.WithGoalValue(planning.Constant(5)))
	agent, err := planning.NewBuilder("zoo").Actions(boom).Goal(goal).Build()
	require.NoError(t, err)

	bodies := map[string]action.Body{
		"Boom": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			return nil, assert.AnError
		},
	}

	p, err := process.New("p4", agent, bodies, process.Options{
		PlannerType: process.GOAP,
		RetryPolicy: qos.Policy{MaxAttempts: 1},
	})
	require.NoError(t, err)

	err = (process.SequentialDriver{}).Run(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, process.Failed, p.StatusValue())
}

func TestNewProcessID_IsUniqueAndPrefixedWithAgentName(t *testing.T) {
	a := process.NewProcessID("zoo.keeper")
	b := process.NewProcessID("zoo.keeper")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "zoo-keeper-")
}
