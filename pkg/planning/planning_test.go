package planning_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

func feedAction() *planning.Action {
	return planning.NewAction("Feed",
		planning.WithPreconditions(condition.NewEffectSpec("hungry", condition.TRUE)),
		planning.WithEffects(condition.NewEffectSpec("hungry", condition.FALSE)),
	)
}

func TestAction_IsApplicableAndApply(t *testing.T) {
	feed := feedAction()
	ws := worldstate.FromMap(map[string]condition.Determination{"hungry": condition.TRUE})

	assert.True(t, feed.IsApplicable(ws))

	next := feed.Apply(ws)
	assert.Equal(t, condition.FALSE, next.Get("hungry"))
	assert.False(t, feed.IsApplicable(next))
}

func TestGoal_IsSatisfiedBy(t *testing.T) {
	goal := planning.NewGoal("ElephantFed",
		planning.WithGoalPreconditions(condition.NewEffectSpec("hungry", condition.FALSE)))

	assert.False(t, goal.IsSatisfiedBy(worldstate.Empty()))
	fed := worldstate.FromMap(map[string]condition.Determination{"hungry": condition.FALSE})
	assert.True(t, goal.IsSatisfiedBy(fed))
}

func TestNirvana_AlwaysSatisfied(t *testing.T) {
	n := planning.Nirvana()
	assert.True(t, n.IsSatisfiedBy(worldstate.Empty()))
	assert.Equal(t, 0.0, n.Value(worldstate.Empty()))
}

func TestNewSystem_PanicsOnDuplicateActionName(t *testing.T) {
	defer func() {
		r := recover()
		assert.NotNil(t, r)
	}()
	planning.NewSystem("zoo", []*planning.Action{feedAction(), feedAction()}, nil)
}

func TestBuilder_BuildAddsImplicitNirvanaGoal(t *testing.T) {
	agent, err := planning.NewBuilder("zookeeper").
		Description("feeds the elephants").
		Provider("zoo-corp").
		Action(feedAction()).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "zookeeper", agent.Name())

	var sawNirvana bool
	for _, g := range agent.System().Goals() {
		if g.Name() == planning.NirvanaName {
			sawNirvana = true
		}
	}
	assert.True(t, sawNirvana)
}

func TestBuilder_BuildRejectsDuplicateActionNames(t *testing.T) {
	_, err := planning.NewBuilder("zookeeper").
		Action(feedAction()).
		Action(feedAction()).
		Build()

	require.Error(t, err)
}

func TestBuilder_BuildRejectsEmptyName(t *testing.T) {
	_, err := planning.NewBuilder("").Build()
	require.Error(t, err)
}

func TestBuilder_Evaluator(t *testing.T) {
	called := false
	agent, err := planning.NewBuilder("zookeeper").
		Evaluator("cage-open", func(env any) (bool, error) {
			called = true
			return true, nil
		}).
		Build()
	require.NoError(t, err)

	eval, ok := agent.Evaluator("cage-open")
	require.True(t, ok)
	ok2, err := eval(nil)
	require.NoError(t, err)
	assert.True(t, ok2)
	assert.True(t, called)
}
