package goap_test

import (
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/goap"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// conditionVocabulary is the fixed pool of condition names randomSystem
// draws preconditions/effects/the goal from, kept small so Prune's forward
// search over generated systems stays fast.
var conditionVocabulary = []string{"c0", "c1", "c2", "c3"}

// randomAction is one generated action, with a random subset of the
// vocabulary as preconditions/effects. genRandomSystem draws up to 6 of
// them and buildSystem adds a fixed goal requiring conditionVocabulary[0]
// true.
type randomAction struct {
	Name          string
	Preconditions []conditionPair
	Effects       []conditionPair
}

type conditionPair struct {
	Name string
	Det  condition.Determination
}

func genDeterminationBool() gopter.Gen {
	return gen.Bool().Map(func(b bool) condition.Determination {
		if b {
			return condition.TRUE
		}
		return condition.FALSE
	})
}

func genConditionPairs() gopter.Gen {
	return gen.SliceOfN(len(conditionVocabulary), genDeterminationBool()).Map(func(dets []condition.Determination) []conditionPair {
		out := make([]conditionPair, 0, len(conditionVocabulary))
		for i, name := range conditionVocabulary {
			out = append(out, conditionPair{Name: name, Det: dets[i]})
		}
		return out
	})
}

func genRandomAction(index int) gopter.Gen {
	return gopter.CombineGens(
		genConditionPairs(),
		genConditionPairs(),
		gen.SliceOfN(len(conditionVocabulary), gen.Bool()),
		gen.SliceOfN(len(conditionVocabulary), gen.Bool()),
	).Map(func(vals []any) randomAction {
		preSrc := vals[0].([]conditionPair)
		effSrc := vals[1].([]conditionPair)
		preMask := vals[2].([]bool)
		effMask := vals[3].([]bool)

		var pre, eff []conditionPair
		for i, include := range preMask {
			if include {
				pre = append(pre, preSrc[i])
			}
		}
		for i, include := range effMask {
			if include {
				eff = append(eff, effSrc[i])
			}
		}
		return randomAction{Name: fmt.Sprintf("A%d", index), Preconditions: pre, Effects: eff}
	})
}

func genRandomSystem(maxActions int) gopter.Gen {
	return gen.IntRange(0, maxActions).FlatMap(func(n any) gopter.Gen {
		count := n.(int)
		gens := make([]gopter.Gen, count)
		for i := 0; i < count; i++ {
			gens[i] = genRandomAction(i)
		}
		if count == 0 {
			return gen.Const([]randomAction{})
		}
		return gopter.CombineGens(gens...).Map(func(vals []any) []randomAction {
			out := make([]randomAction, len(vals))
			for i, v := range vals {
				out[i] = v.(randomAction)
			}
			return out
		})
	}, reflect.TypeOf([]randomAction{}))
}

func buildSystem(ras []randomAction) *planning.System {
	actions := make([]*planning.Action, 0, len(ras))
	for _, ra := range ras {
		var opts []planning.ActionOption
		if len(ra.Preconditions) > 0 {
			pairs := make([]any, 0, len(ra.Preconditions)*2)
			for _, p := range ra.Preconditions {
				pairs = append(pairs, p.Name, p.Det)
			}
			opts = append(opts, planning.WithPreconditions(condition.NewEffectSpec(pairs...)))
		}
		if len(ra.Effects) > 0 {
			pairs := make([]any, 0, len(ra.Effects)*2)
			for _, e := range ra.Effects {
				pairs = append(pairs, e.Name, e.Det)
			}
			opts = append(opts, planning.WithEffects(condition.NewEffectSpec(pairs...)))
		}
		actions = append(actions, planning.NewAction(ra.Name, opts...))
	}
	goal := planning.NewGoal("Goal",
		planning.WithGoalPreconditions(condition.NewEffectSpec(conditionVocabulary[0], condition.TRUE)),
		planning.WithGoalValue(planning.Constant(1)))
	return planning.NewSystem("random", actions, []*planning.Goal{goal})
}

func startWorldState() worldstate.WorldState {
	m := make(map[string]condition.Determination, len(conditionVocabulary))
	for _, name := range conditionVocabulary {
		m[name] = condition.FALSE
	}
	return worldstate.FromMap(m)
}

// TestPlanner_Prune_IsIdempotentProperty checks, for randomly generated
// planning systems, that pruning a system twice yields the same action set
// as pruning it once — Prune's fixed point is reached in a single pass.
func TestPlanner_Prune_IsIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("pruning a pruned system changes nothing", prop.ForAll(
		func(ras []randomAction) bool {
			system := buildSystem(ras)
			start := startWorldState()
			planner := goap.NewPlanner()

			once := planner.Prune(system, start)
			twice := planner.Prune(once, start)

			return sameActionSet(once, twice)
		},
		genRandomSystem(6),
	))

	properties.TestingRun(t)
}

func sameActionSet(a, b *planning.System) bool {
	an := actionNameSet(a)
	bn := actionNameSet(b)
	if len(an) != len(bn) {
		return false
	}
	for _, name := range an {
		idx := sort.SearchStrings(bn, name)
		if idx >= len(bn) || bn[idx] != name {
			return false
		}
	}
	return true
}

func actionNameSet(s *planning.System) []string {
	out := make([]string, 0, len(s.Actions()))
	for _, a := range s.Actions() {
		out = append(out, a.Name())
	}
	sort.Strings(out)
	return out
}
