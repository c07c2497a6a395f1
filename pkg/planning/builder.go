package planning

import "fmt"

// Agent is the immutable result of assembling a Builder: a named,
// described, provider-tagged planning System plus the free-form condition
// evaluators registered alongside it. See spec.md §6.
type Agent struct {
	name        string
	description string
	provider    string
	system      *System
	evaluators  map[string]ConditionEvaluator
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }
func (a *Agent) Provider() string    { return a.provider }
func (a *Agent) System() *System     { return a.system }

// Evaluator returns the condition evaluator registered under name, if any.
func (a *Agent) Evaluator(name string) (ConditionEvaluator, bool) {
	e, ok := a.evaluators[name]
	return e, ok
}

// Evaluators returns a copy of every condition evaluator registered with
// this agent, keyed by name.
func (a *Agent) Evaluators() map[string]ConditionEvaluator {
	out := make(map[string]ConditionEvaluator, len(a.evaluators))
	for k, v := range a.evaluators {
		out[k] = v
	}
	return out
}

// ConditionEvaluator computes a condition's Determination directly rather
// than through world-state lookup, for conditions backed by a live probe
// (spec.md §9's "condition evaluators" extension point). The env argument
// is whatever evaluation context the registering agent supplied (typically
// a *blackboard.Blackboard wrapped as an expr.Env, or nil).
type ConditionEvaluator func(env any) (bool, error)

// Builder assembles an Agent from a name, a description, a provider
// string, a set of actions, a set of goals, and optional condition
// evaluators, per spec.md §6. It is a mutable construction-time helper;
// Build() freezes the result into an immutable Agent.
type Builder struct {
	name        string
	description string
	provider    string
	actions     []*Action
	goals       []*Goal
	evaluators  map[string]ConditionEvaluator
}

// NewBuilder starts assembling an agent with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, evaluators: map[string]ConditionEvaluator{}}
}

// Description sets the agent's human-readable description.
func (b *Builder) Description(d string) *Builder {
	b.description = d
	return b
}

// Provider sets the agent's provider tag (e.g. an organization or package
// path identifying who registered this agent).
func (b *Builder) Provider(p string) *Builder {
	b.provider = p
	return b
}

// Action registers an action with the agent being built.
func (b *Builder) Action(a *Action) *Builder {
	b.actions = append(b.actions, a)
	return b
}

// Actions registers multiple actions at once.
func (b *Builder) Actions(actions ...*Action) *Builder {
	b.actions = append(b.actions, actions...)
	return b
}

// Goal registers a goal with the agent being built.
func (b *Builder) Goal(g *Goal) *Builder {
	b.goals = append(b.goals, g)
	return b
}

// Goals registers multiple goals at once.
func (b *Builder) Goals(goals ...*Goal) *Builder {
	b.goals = append(b.goals, goals...)
	return b
}

// Evaluator registers a named condition evaluator.
func (b *Builder) Evaluator(name string, eval ConditionEvaluator) *Builder {
	b.evaluators[name] = eval
	return b
}

// Build validates and freezes the assembled agent. It returns an error
// rather than panicking because, unlike NewSystem's programmer-error
// duplicate-action check, a Builder is commonly fed by dynamic
// registration (e.g. remoteaction) where a name collision is a reportable
// configuration mistake, not a bug at the call site.
func (b *Builder) Build() (*Agent, error) {
	if b.name == "" {
		return nil, fmt.Errorf("planning: agent name is required")
	}
	seen := make(map[string]struct{}, len(b.actions))
	for _, a := range b.actions {
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("planning: duplicate action name %q", a.Name())
		}
		seen[a.Name()] = struct{}{}
	}
	goals := b.goals
	hasNirvana := false
	for _, g := range goals {
		if g.Name() == NirvanaName {
			hasNirvana = true
			break
		}
	}
	if !hasNirvana {
		goals = append(goals, Nirvana())
	}

	evaluators := make(map[string]ConditionEvaluator, len(b.evaluators))
	for k, v := range b.evaluators {
		evaluators[k] = v
	}

	return &Agent{
		name:        b.name,
		description: b.description,
		provider:    b.provider,
		system:      NewSystem(b.name, b.actions, goals),
		evaluators:  evaluators,
	}, nil
}
