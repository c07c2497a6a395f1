// Package utility implements the single-step greedy planner of spec.md
// §4.3: among actions applicable in the current world state, pick the one
// contributing most to the best-valued reachable goal, one step at a time,
// sharing planning.System and worldstate.WorldState with pkg/goap rather
// than defining its own plan representation.
package utility

import (
	"sort"

	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// Planner selects the single best next action from the current world
// state, without searching further ahead than one step.
type Planner struct{}

// NewPlanner constructs a Planner.
func NewPlanner() *Planner { return &Planner{} }

// Choice is the outcome of a single greedy selection: the chosen action,
// the goal it makes progress toward, and the resulting net score used to
// rank it against other applicable actions.
type Choice struct {
	Action *planning.Action
	Goal   *planning.Goal
	Net    float64
}

// Next selects, among every applicable action plus the option of doing
// nothing, the one with the greatest net = goal.Value(resultingState) -
// cost across every goal in system, where "doing nothing" has cost 0 and
// applies only to goals already satisfied in ws. Ties between actions are
// broken by lexicographic action name; an action never replaces an
// equally scored "do nothing". If no goal is satisfied in ws and no
// single applicable action satisfies one, it returns errorx.PlanNotFound.
func (p *Planner) Next(system *planning.System, ws worldstate.WorldState) (*Choice, error) {
	applicable := make([]*planning.Action, 0, len(system.Actions()))
	for _, a := range system.Actions() {
		if a.IsApplicable(ws) {
			applicable = append(applicable, a)
		}
	}
	sort.Slice(applicable, func(i, j int) bool { return applicable[i].Name() < applicable[j].Name() })

	var best *Choice
	consider := func(candidate *Choice) {
		if best == nil || candidate.Net > best.Net {
			best = candidate
			return
		}
		if candidate.Net == best.Net && candidate.Action != nil && best.Action != nil &&
			candidate.Action.Name() < best.Action.Name() {
			best = candidate
		}
	}

	for _, goal := range system.Goals() {
		if goal.IsSatisfiedBy(ws) {
			consider(&Choice{Goal: goal, Net: goal.Value(ws)})
		}
	}

	for _, action := range applicable {
		next := action.Apply(ws)
		cost := action.Cost(ws)
		for _, goal := range system.Goals() {
			if !goal.IsSatisfiedBy(next) {
				continue
			}
			net := goal.Value(next) - cost
			consider(&Choice{Action: action, Goal: goal, Net: net})
		}
	}

	if best == nil {
		return nil, errorx.New(errorx.PlanNotFound, "no action is applicable and no goal is already satisfied")
	}
	return best, nil
}
