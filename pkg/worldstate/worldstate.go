// Package worldstate implements the partial condition-name→Determination
// mapping described in spec.md §3 ("WorldState (Condition)") and the
// world-state determiner described in §4.1.
package worldstate

import "github.com/embabel/agent-core-go/pkg/condition"

// Effector is anything whose effects can be applied to a WorldState: both
// planning.Action and condition.EffectSpec satisfy it.
type Effector interface {
	Effects() condition.EffectSpec
}

// WorldState is an immutable, persistent (copy-on-write) mapping from
// condition name to Determination.
type WorldState struct {
	values map[string]condition.Determination
}

// Empty returns a WorldState with no known conditions.
func Empty() WorldState {
	return WorldState{}
}

// FromMap builds a WorldState from an existing name→Determination map,
// copying it so the caller's map can be mutated freely afterwards.
func FromMap(m map[string]condition.Determination) WorldState {
	cp := make(map[string]condition.Determination, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return WorldState{values: cp}
}

// Get returns the Determination of name, or UNKNOWN if the condition is not
// present in this WorldState.
func (w WorldState) Get(name string) condition.Determination {
	if w.values == nil {
		return condition.UNKNOWN
	}
	if v, ok := w.values[name]; ok {
		return v
	}
	return condition.UNKNOWN
}

// WithCondition returns a new WorldState with name overridden to det,
// corresponding to spec.md §3's `worldState + (c→v)`.
func (w WorldState) WithCondition(name string, det condition.Determination) WorldState {
	out := make(map[string]condition.Determination, len(w.values)+1)
	for k, v := range w.values {
		out[k] = v
	}
	out[name] = det
	return WorldState{values: out}
}

// WithEffects returns a new WorldState with every condition named in
// effects overwritten by its effect value, corresponding to spec.md §3's
// `worldState + action` (action application, §4.2 step 2).
func (w WorldState) WithEffects(effects condition.EffectSpec) WorldState {
	out := make(map[string]condition.Determination, len(w.values)+len(effects))
	for k, v := range w.values {
		out[k] = v
	}
	for k, v := range effects {
		out[k] = v
	}
	return WorldState{values: out}
}

// Known returns the subset of condition names whose value is TRUE or
// FALSE.
func (w WorldState) Known() map[string]condition.Determination {
	out := make(map[string]condition.Determination)
	for k, v := range w.values {
		if v != condition.UNKNOWN {
			out[k] = v
		}
	}
	return out
}

// Unknown returns the condition names whose value is UNKNOWN.
func (w WorldState) Unknown() []string {
	var out []string
	for k, v := range w.values {
		if v == condition.UNKNOWN {
			out = append(out, k)
		}
	}
	return out
}

// Satisfies reports whether every condition in spec holds in w, per the
// Matches semantics in package condition (UNKNOWN in spec is "don't care";
// UNKNOWN in w for a required condition never satisfies it).
func (w WorldState) Satisfies(spec condition.EffectSpec) bool {
	return spec.SatisfiedBy(w.Get)
}

// Names returns every condition name this WorldState has an opinion about
// (known or explicitly unknown).
func (w WorldState) Names() []string {
	out := make([]string, 0, len(w.values))
	for k := range w.values {
		out = append(out, k)
	}
	return out
}
