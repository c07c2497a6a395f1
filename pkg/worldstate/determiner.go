package worldstate

import (
	"context"

	"github.com/embabel/agent-core-go/pkg/blackboard"
	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/expr"
	"github.com/embabel/agent-core-go/pkg/telemetry"
)

// Evaluator computes a single named condition's Determination against an
// evaluation environment (typically a blackboard.Env). It must never
// propagate an error to the caller as a panic: DetermineCondition recovers
// and maps any failure to UNKNOWN per spec.md §4.1.
type Evaluator func(env expr.Env) (bool, error)

// FromExprSource compiles src once and returns an Evaluator that evaluates
// the compiled expression against the supplied environment on every call.
func FromExprSource(src string) (Evaluator, error) {
	parsed, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	return func(env expr.Env) (bool, error) {
		return expr.EvalParsed(parsed, env)
	}, nil
}

// Determiner produces a WorldState from a blackboard and a set of named
// condition evaluators, per spec.md §4.1.
type Determiner struct {
	blackboard *blackboard.Blackboard
	evaluators map[string]Evaluator
	logger     telemetry.Logger
}

// NewDeterminer constructs a Determiner over bb, evaluating the named
// conditions in evaluators. A nil logger is replaced with a no-op logger.
func NewDeterminer(bb *blackboard.Blackboard, evaluators map[string]Evaluator, logger telemetry.Logger) *Determiner {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	cp := make(map[string]Evaluator, len(evaluators))
	for k, v := range evaluators {
		cp[k] = v
	}
	return &Determiner{blackboard: bb, evaluators: cp, logger: logger}
}

// DetermineWorldState evaluates every registered condition eagerly and
// returns the resulting WorldState. Conditions whose evaluator fails are
// preserved as UNKNOWN.
func (d *Determiner) DetermineWorldState(ctx context.Context) WorldState {
	out := make(map[string]condition.Determination, len(d.evaluators))
	for name := range d.evaluators {
		out[name] = d.DetermineCondition(ctx, name)
	}
	return FromMap(out)
}

// DetermineCondition evaluates a single named condition on demand. An
// unregistered condition, a failing evaluator, or a recovered panic all map
// to UNKNOWN; the failure is logged, never propagated.
func (d *Determiner) DetermineCondition(ctx context.Context, name string) (det condition.Determination) {
	eval, ok := d.evaluators[name]
	if !ok {
		return condition.UNKNOWN
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn(ctx, "worldstate: condition evaluator panicked", "condition", name, "panic", r)
			det = condition.UNKNOWN
		}
	}()

	env := d.blackboard.Env()
	v, err := eval(env)
	if err != nil {
		d.logger.Warn(ctx, "worldstate: condition evaluator failed", "condition", name, "error", err)
		return condition.UNKNOWN
	}
	return condition.FromBool(v)
}
