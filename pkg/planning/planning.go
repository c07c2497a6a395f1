// Package planning defines the static, immutable action/goal/condition
// data model described in spec.md §3 and the agent-registration builder of
// §6. Actions and Goals are assembled once, at agent-assembly time, and
// never mutated afterwards; a planning System groups them for a planner to
// search.
package planning

import (
	"fmt"

	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// Binding names a typed input or output slot on an Action.
type Binding struct {
	// Name is the binding identifier used for blackboard lookup.
	Name string
	// Type is the domain type's display name (e.g. "Elephant"). The
	// concrete Go type is carried separately by the action.Runtime that
	// implements this Action's body, matching spec.md §3's note that
	// "Action is pure data; the execution behavior is a separate callable
	// bound to the name."
	Type string
}

// CostFunc computes an action's or goal's cost/value given the current
// world state, as spec.md §3 requires ("cost and value, both of which may
// depend on the current world state").
type CostFunc func(worldstate.WorldState) float64

// Constant returns a CostFunc that ignores the world state.
func Constant(v float64) CostFunc {
	return func(worldstate.WorldState) float64 { return v }
}

// Action is an immutable descriptor of a single operation a planner may
// schedule. See spec.md §3.
type Action struct {
	name          string
	description   string
	inputs        []Binding
	outputs       []Binding
	preconditions condition.EffectSpec
	effects       condition.EffectSpec
	cost          CostFunc
	value         CostFunc
	canRerun      bool
	toolGroups    []string
}

// ActionOption configures an Action at construction time.
type ActionOption func(*Action)

// WithDescription sets the action's human-readable description.
func WithDescription(d string) ActionOption { return func(a *Action) { a.description = d } }

// WithInputs declares the action's named, typed input bindings.
func WithInputs(inputs ...Binding) ActionOption { return func(a *Action) { a.inputs = inputs } }

// WithOutputs declares the action's named, typed output bindings.
func WithOutputs(outputs ...Binding) ActionOption { return func(a *Action) { a.outputs = outputs } }

// WithPreconditions sets the conditions that must hold for this action to
// be applicable.
func WithPreconditions(spec condition.EffectSpec) ActionOption {
	return func(a *Action) { a.preconditions = spec }
}

// WithEffects sets the conditions this action asserts (TRUE or FALSE)
// after it runs.
func WithEffects(spec condition.EffectSpec) ActionOption {
	return func(a *Action) { a.effects = spec }
}

// WithCost overrides the default constant cost of 1.
func WithCost(fn CostFunc) ActionOption { return func(a *Action) { a.cost = fn } }

// WithValue overrides the default constant value of 0.
func WithValue(fn CostFunc) ActionOption { return func(a *Action) { a.value = fn } }

// WithCanRerun marks whether the action may appear more than once in a
// plan. Default is true (idempotent); set false for actions with
// side effects that must not be repeated.
func WithCanRerun(b bool) ActionOption { return func(a *Action) { a.canRerun = b } }

// WithToolGroups declares the capability groups the executing context must
// provide for this action to run.
func WithToolGroups(groups ...string) ActionOption {
	return func(a *Action) { a.toolGroups = groups }
}

// NewAction constructs an immutable Action. Name must be unique within a
// planning System.
func NewAction(name string, opts ...ActionOption) *Action {
	a := &Action{
		name:          name,
		preconditions: condition.EffectSpec{},
		effects:       condition.EffectSpec{},
		cost:          Constant(1),
		value:         Constant(0),
		canRerun:      true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Action) Name() string { return a.name }
func (a *Action) Description() string { return a.description }
func (a *Action) Inputs() []Binding { return a.inputs }
func (a *Action) Outputs() []Binding { return a.outputs }
func (a *Action) Preconditions() condition.EffectSpec { return a.preconditions }
func (a *Action) Effects() condition.EffectSpec { return a.effects }
func (a *Action) Cost(ws worldstate.WorldState) float64 {
	if a.cost == nil {
		return 1
	}
	return a.cost(ws)
}
func (a *Action) Value(ws worldstate.WorldState) float64 {
	if a.value == nil {
		return 0
	}
	return a.value(ws)
}
func (a *Action) CanRerun() bool { return a.canRerun }
func (a *Action) ToolGroups() []string { return a.toolGroups }

// IsApplicable reports whether every precondition holds in ws, i.e.
// ws.Satisfies(a.preconditions).
func (a *Action) IsApplicable(ws worldstate.WorldState) bool {
	return ws.Satisfies(a.preconditions)
}

// Apply returns the world state resulting from executing this action
// against ws: the effects overwrite matching conditions (spec.md §3,
// `worldState + action`).
func (a *Action) Apply(ws worldstate.WorldState) worldstate.WorldState {
	return ws.WithEffects(a.effects)
}

// Goal is a named target state, expressed as a condition set, with a
// cost-computation value. See spec.md §3.
type Goal struct {
	name          string
	preconditions condition.EffectSpec
	value         CostFunc
}

// GoalOption configures a Goal at construction time.
type GoalOption func(*Goal)

// WithGoalPreconditions sets the conditions that, once true, indicate the
// goal is satisfied.
func WithGoalPreconditions(spec condition.EffectSpec) GoalOption {
	return func(g *Goal) { g.preconditions = spec }
}

// WithGoalValue overrides the default constant value of 1.
func WithGoalValue(fn CostFunc) GoalOption { return func(g *Goal) { g.value = fn } }

// NewGoal constructs an immutable Goal.
func NewGoal(name string, opts ...GoalOption) *Goal {
	g := &Goal{name: name, preconditions: condition.EffectSpec{}, value: Constant(1)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Goal) Name() string                       { return g.name }
func (g *Goal) Preconditions() condition.EffectSpec { return g.preconditions }
func (g *Goal) Value(ws worldstate.WorldState) float64 {
	if g.value == nil {
		return 1
	}
	return g.value(ws)
}

// IsSatisfiedBy reports whether ws satisfies this goal's preconditions.
func (g *Goal) IsSatisfiedBy(ws worldstate.WorldState) bool {
	return ws.Satisfies(g.preconditions)
}

// NirvanaName is the reserved name of the terminal "nothing more to do"
// goal (spec.md §3).
const NirvanaName = "Nirvana"

// Nirvana is the terminal goal: empty preconditions (always satisfied) and
// value 0.
func Nirvana() *Goal {
	return NewGoal(NirvanaName, WithGoalValue(Constant(0)))
}

// System is an immutable set of actions and goals that a planner searches
// over. Condition evaluators live on the Agent, not on the System.
type System struct {
	name    string
	actions []*Action
	goals   []*Goal
}

// NewSystem constructs a planning System from the given actions and goals.
// Action names must be unique; NewSystem panics on a duplicate name since
// that indicates a bug in agent assembly, not a runtime condition.
func NewSystem(name string, actions []*Action, goals []*Goal) *System {
	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if _, dup := seen[a.Name()]; dup {
			panic(fmt.Sprintf("planning: duplicate action name %q", a.Name()))
		}
		seen[a.Name()] = struct{}{}
	}
	return &System{name: name, actions: actions, goals: goals}
}

func (s *System) Name() string { return s.name }
func (s *System) Actions() []*Action { return s.actions }
func (s *System) Goals() []*Goal { return s.goals }

// ActionByName returns the action with the given name, or nil.
func (s *System) ActionByName(name string) *Action {
	for _, a := range s.actions {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// WithActions returns a new System containing only the given subset of
// actions (by name), preserving goals. Used by goap.Prune.
func (s *System) WithActions(names map[string]struct{}) *System {
	var kept []*Action
	for _, a := range s.actions {
		if _, ok := names[a.Name()]; ok {
			kept = append(kept, a)
		}
	}
	return &System{name: s.name, actions: kept, goals: s.goals}
}
