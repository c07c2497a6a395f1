// Package goap implements the Goal-Oriented Action Planning search
// described in spec.md §4.2: forward search over the reachable-state
// graph, minimum total cost with the documented tie-break order, on-demand
// resolution of a single unknown start condition, and Prune for reducing
// a planning.System to only the actions that appear in some plan.
package goap

import (
	"context"
	"sort"
	"strings"

	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// Plan is an ordered sequence of actions and its total cost, computed
// against the world state the plan was built from.
type Plan struct {
	Actions []*planning.Action
	Cost    float64
}

// ActionNames renders the plan as a slice of action names, for logging and
// test assertions.
func (p *Plan) ActionNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = a.Name()
	}
	return names
}

// Planner searches a planning.System for the minimum-cost plan to each
// goal, resolving UNKNOWN start conditions via a worldstate.Determiner.
type Planner struct {
	maxDepth        int
	maxNodes        int
	unknownStrategy UnknownStrategy
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxDepth bounds the number of actions considered in any candidate
// plan. Default is 12.
func WithMaxDepth(n int) Option { return func(p *Planner) { p.maxDepth = n } }

// WithMaxNodes bounds the number of search-tree nodes expanded before the
// planner gives up and returns whatever candidates it already found.
// Default is 20000.
func WithMaxNodes(n int) Option { return func(p *Planner) { p.maxNodes = n } }

// WithUnknownStrategy installs the strategy used when more than one
// start-state condition relevant to planning is UNKNOWN. Without one, a
// system with more than one relevant unknown fails with
// errorx.MultipleUnknownsUnhandled, per spec.md §4.2's open question.
func WithUnknownStrategy(s UnknownStrategy) Option {
	return func(p *Planner) { p.unknownStrategy = s }
}

// NewPlanner constructs a Planner with the given options applied over
// sensible defaults.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{maxDepth: 12, maxNodes: 20000}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UnknownStrategy resolves more than one relevant UNKNOWN start condition
// before planning proceeds. See EnumerateVariants.
type UnknownStrategy interface {
	// Resolve returns a world state with every name in unknowns replaced by
	// a concrete TRUE/FALSE determination, or an error (typically
	// errorx.MultipleUnknownsUnhandled) if it declines to handle the given
	// unknown set.
	Resolve(ctx context.Context, determiner *worldstate.Determiner, ws worldstate.WorldState, unknowns []string) (worldstate.WorldState, error)
}

// UnknownStrategyFunc adapts a function to an UnknownStrategy.
type UnknownStrategyFunc func(ctx context.Context, determiner *worldstate.Determiner, ws worldstate.WorldState, unknowns []string) (worldstate.WorldState, error)

// Resolve implements UnknownStrategy.
func (f UnknownStrategyFunc) Resolve(ctx context.Context, determiner *worldstate.Determiner, ws worldstate.WorldState, unknowns []string) (worldstate.WorldState, error) {
	return f(ctx, determiner, ws, unknowns)
}

// EnumerateVariants returns an UnknownStrategy that resolves up to maxK
// unknown conditions by calling determiner.DetermineCondition for each,
// per spec.md §4.2's suggested "compute all 2^k variants for small k"
// extension — here simplified to resolving every unknown via the
// determiner rather than branching the search, since DetermineCondition is
// itself authoritative (not speculative) per spec.md §4.1.
func EnumerateVariants(maxK int) UnknownStrategy {
	return UnknownStrategyFunc(func(ctx context.Context, determiner *worldstate.Determiner, ws worldstate.WorldState, unknowns []string) (worldstate.WorldState, error) {
		if len(unknowns) > maxK {
			return ws, errorx.Newf(errorx.MultipleUnknownsUnhandled,
				"%d unknown conditions exceed configured ceiling of %d", len(unknowns), maxK)
		}
		resolved := ws
		for _, name := range unknowns {
			det := determiner.DetermineCondition(ctx, name)
			resolved = resolved.WithCondition(name, condition.AsTrueOrFalse(det))
		}
		return resolved, nil
	})
}

// Plan finds, for every goal in system, the minimum-cost plan from start,
// then returns the plan with the greatest net = goal.Value(state) -
// plan.Cost, per spec.md §4.2's "best-plan selection across goals". If no
// goal is reachable, it returns errorx.PlanNotFound.
func (p *Planner) Plan(ctx context.Context, system *planning.System, determiner *worldstate.Determiner, start worldstate.WorldState) (*Plan, *planning.Goal, error) {
	resolved, err := p.resolveUnknowns(ctx, system, determiner, start)
	if err != nil {
		return nil, nil, err
	}

	var bestPlan *Plan
	var bestGoal *planning.Goal
	bestNet := negativeInfinity

	for _, goal := range system.Goals() {
		plan, ok := p.planFor(system, resolved, goal)
		if !ok {
			continue
		}
		net := goal.Value(resolved) - plan.Cost
		if bestPlan == nil || net > bestNet {
			bestPlan, bestGoal, bestNet = plan, goal, net
		}
	}

	if bestPlan == nil {
		return nil, nil, errorx.New(errorx.PlanNotFound, "no goal is reachable from the current world state")
	}
	return bestPlan, bestGoal, nil
}

// PlanForGoal finds the minimum-cost plan to a single named goal, without
// the cross-goal net-value selection Plan performs.
func (p *Planner) PlanForGoal(ctx context.Context, system *planning.System, determiner *worldstate.Determiner, start worldstate.WorldState, goalName string) (*Plan, error) {
	resolved, err := p.resolveUnknowns(ctx, system, determiner, start)
	if err != nil {
		return nil, err
	}
	for _, goal := range system.Goals() {
		if goal.Name() != goalName {
			continue
		}
		plan, ok := p.planFor(system, resolved, goal)
		if !ok {
			return nil, errorx.Newf(errorx.PlanNotFound, "goal %q is not reachable from the current world state", goalName)
		}
		return plan, nil
	}
	return nil, errorx.Newf(errorx.PlanNotFound, "no such goal %q", goalName)
}

const negativeInfinity = -1e18

// resolveUnknowns identifies the conditions relevant to planning (those
// named in any action precondition/effect or goal precondition) that are
// UNKNOWN in start, and resolves them per spec.md §4.2: zero unknowns is a
// no-op, exactly one is resolved on demand only if it actually changes the
// plan, and more than one requires an UnknownStrategy.
func (p *Planner) resolveUnknowns(ctx context.Context, system *planning.System, determiner *worldstate.Determiner, start worldstate.WorldState) (worldstate.WorldState, error) {
	relevant := relevantConditionNames(system)
	var unknowns []string
	for _, name := range relevant {
		if start.Get(name) == condition.UNKNOWN {
			unknowns = append(unknowns, name)
		}
	}
	sort.Strings(unknowns)

	switch len(unknowns) {
	case 0:
		return start, nil
	case 1:
		name := unknowns[0]
		direct := p.anyPlanActionNames(system, start)
		asTrue := start.WithCondition(name, condition.TRUE)
		asFalse := start.WithCondition(name, condition.FALSE)
		trueNames := p.anyPlanActionNames(system, asTrue)
		falseNames := p.anyPlanActionNames(system, asFalse)
		if sameNames(direct, trueNames) && sameNames(direct, falseNames) {
			return start, nil
		}
		if determiner == nil {
			return start, errorx.Newf(errorx.MultipleUnknownsUnhandled,
				"condition %q is unknown and no determiner is configured to resolve it", name)
		}
		det := determiner.DetermineCondition(ctx, name)
		return start.WithCondition(name, condition.AsTrueOrFalse(det)), nil
	default:
		if p.unknownStrategy == nil {
			return start, errorx.Newf(errorx.MultipleUnknownsUnhandled,
				"%d conditions are unknown (%s) and no unknown-handling strategy is configured",
				len(unknowns), strings.Join(unknowns, ", "))
		}
		return p.unknownStrategy.Resolve(ctx, determiner, start, unknowns)
	}
}

// anyPlanActionNames computes a representative plan's action-name sequence
// across every goal from ws, used only to detect whether the unknown
// condition's concrete value would change which plan is chosen.
func (p *Planner) anyPlanActionNames(system *planning.System, ws worldstate.WorldState) []string {
	var best *Plan
	bestNet := negativeInfinity
	for _, goal := range system.Goals() {
		plan, ok := p.planFor(system, ws, goal)
		if !ok {
			continue
		}
		net := goal.Value(ws) - plan.Cost
		if best == nil || net > bestNet {
			best, bestNet = plan, net
		}
	}
	return best.ActionNames()
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func relevantConditionNames(system *planning.System) []string {
	seen := map[string]struct{}{}
	var names []string
	add := func(spec condition.EffectSpec) {
		for name := range spec {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	for _, a := range system.Actions() {
		add(a.Preconditions())
		add(a.Effects())
	}
	for _, g := range system.Goals() {
		add(g.Preconditions())
	}
	sort.Strings(names)
	return names
}

// Prune returns a System containing only the actions that appear in at
// least one minimum-cost plan to some goal from start, per spec.md §4.2.
// Prune is idempotent: pruning an already-pruned system returns the same
// action set.
func (p *Planner) Prune(system *planning.System, start worldstate.WorldState) *planning.System {
	kept := map[string]struct{}{}
	for _, goal := range system.Goals() {
		plan, ok := p.planFor(system, start, goal)
		if !ok {
			continue
		}
		for _, a := range plan.Actions {
			kept[a.Name()] = struct{}{}
		}
	}
	return system.WithActions(kept)
}

// searchNode is one state in the forward-search tree.
type searchNode struct {
	state    worldstate.WorldState
	cost     float64
	plan     []*planning.Action
	usedOnce map[string]struct{}
	depth    int
}

// planFor runs the bounded forward search for a single goal from ws and
// returns the best candidate by the spec.md §4.2 step 4 tie-break: minimum
// cost, then fewer actions, then lexicographically earliest action-name
// sequence.
func (p *Planner) planFor(system *planning.System, ws worldstate.WorldState, goal *planning.Goal) (*Plan, bool) {
	if goal.IsSatisfiedBy(ws) {
		return &Plan{Cost: 0}, true
	}

	actions := system.Actions()
	sorted := make([]*planning.Action, len(actions))
	copy(sorted, actions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	frontier := []*searchNode{{state: ws, usedOnce: map[string]struct{}{}}}
	visited := map[string]float64{}

	var candidates []*Plan
	bestCost := negativeInfinity
	haveBest := false
	nodesExpanded := 0

	for len(frontier) > 0 && nodesExpanded < p.maxNodes {
		node := frontier[0]
		frontier = frontier[1:]
		nodesExpanded++

		if haveBest && node.cost > bestCost {
			continue
		}
		if node.depth >= p.maxDepth {
			continue
		}

		for _, action := range sorted {
			if !action.IsApplicable(node.state) {
				continue
			}
			if !action.CanRerun() {
				if _, used := node.usedOnce[action.Name()]; used {
					continue
				}
			}

			nextState := action.Apply(node.state)
			nextCost := node.cost + action.Cost(node.state)
			if haveBest && nextCost > bestCost {
				continue
			}

			nextUsed := node.usedOnce
			if !action.CanRerun() {
				nextUsed = make(map[string]struct{}, len(node.usedOnce)+1)
				for k := range node.usedOnce {
					nextUsed[k] = struct{}{}
				}
				nextUsed[action.Name()] = struct{}{}
			}

			nextPlan := make([]*planning.Action, len(node.plan)+1)
			copy(nextPlan, node.plan)
			nextPlan[len(node.plan)] = action

			key := nodeKey(nextState, nextUsed)
			if prevCost, ok := visited[key]; ok && prevCost < nextCost {
				continue
			}
			visited[key] = nextCost

			child := &searchNode{state: nextState, cost: nextCost, plan: nextPlan, usedOnce: nextUsed, depth: node.depth + 1}

			if goal.IsSatisfiedBy(nextState) {
				candidate := &Plan{Actions: nextPlan, Cost: nextCost}
				candidates = append(candidates, candidate)
				if !haveBest || nextCost < bestCost {
					bestCost = nextCost
					haveBest = true
				}
				continue
			}

			frontier = append(frontier, child)
		}

		sort.SliceStable(frontier, func(i, j int) bool { return frontier[i].cost < frontier[j].cost })
	}

	if len(candidates) == 0 {
		return nil, false
	}
	return selectBest(candidates), true
}

func selectBest(candidates []*Plan) *Plan {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best
}

func better(a, b *Plan) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	if len(a.Actions) != len(b.Actions) {
		return len(a.Actions) < len(b.Actions)
	}
	an, bn := a.ActionNames(), b.ActionNames()
	for i := range an {
		if an[i] != bn[i] {
			return an[i] < bn[i]
		}
	}
	return false
}

func nodeKey(ws worldstate.WorldState, usedOnce map[string]struct{}) string {
	known := ws.Known()
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(known[name].String())
		b.WriteByte(';')
	}
	b.WriteByte('|')
	used := make([]string, 0, len(usedOnce))
	for name := range usedOnce {
		used = append(used, name)
	}
	sort.Strings(used)
	for _, name := range used {
		b.WriteString(name)
		b.WriteByte(',')
	}
	return b.String()
}
