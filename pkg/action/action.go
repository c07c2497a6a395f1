// Package action implements the action execution boundary described in
// spec.md §4.4: resolving an Action's declared inputs from a blackboard,
// invoking its body under a QoS retry policy, classifying failures per
// pkg/qos, and recording outputs back onto the blackboard.
package action

import (
	"context"
	"runtime/debug"

	"github.com/embabel/agent-core-go/pkg/blackboard"
	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/qos"
	"github.com/embabel/agent-core-go/pkg/telemetry"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// Status is the outcome of a single action invocation.
type Status int

const (
	// Succeeded means the body returned without error and all declared
	// outputs were bound.
	Succeeded Status = iota
	// Failed means the body's error was not recovered by retry.
	Failed
	// Paused means the body requested a pause (e.g. awaiting human
	// confirmation) rather than failing or succeeding.
	Paused
	// Waiting means the body is blocked on an external event and should be
	// re-invoked on the next tick without being treated as a failure.
	Waiting
)

// String renders the Status for logs and test assertions.
func (s Status) String() string {
	switch s {
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	case Paused:
		return "PAUSED"
	case Waiting:
		return "WAITING"
	default:
		return "UNKNOWN"
	}
}

// Body is the callable behind a planning.Action. inputs is keyed by the
// action's declared input binding names, already resolved from the
// blackboard. A Body may return (nil, ErrPause) or (nil, ErrWait) to
// signal Paused/Waiting instead of a normal success or failure.
type Body func(ctx context.Context, inputs map[string]any) (outputs map[string]any, err error)

// ErrPause, when returned by a Body, produces Status Paused.
var ErrPause = pauseSignal{}

// ErrWait, when returned by a Body, produces Status Waiting.
var ErrWait = waitSignal{}

type pauseSignal struct{}

func (pauseSignal) Error() string { return "action: paused" }

type waitSignal struct{}

func (waitSignal) Error() string { return "action: waiting" }

// Result is the outcome of Runtime.Execute.
type Result struct {
	Status  Status
	Outputs map[string]any
	Err     error
}

// Runtime executes planning.Action bodies against a blackboard under a QoS
// retry policy.
type Runtime struct {
	policy qos.Policy
	logger telemetry.Logger
}

// NewRuntime constructs a Runtime. A zero-value policy disables retries
// (single attempt); a nil logger is replaced with a no-op logger.
func NewRuntime(policy qos.Policy, logger telemetry.Logger) *Runtime {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Runtime{policy: policy, logger: logger}
}

// Execute resolves act's declared inputs from bb, invokes body under the
// runtime's retry policy, and on success binds every declared output back
// onto bb. ws is the world state the caller planned against; if act's
// preconditions no longer hold against it (e.g. a concurrent sibling
// action invalidated them since planning), Execute fails fast with
// errorx.PreconditionViolated rather than invoking body. A missing
// required input produces a Failed result wrapping errorx.InputMissing,
// also without ever invoking body.
func (r *Runtime) Execute(ctx context.Context, bb *blackboard.Blackboard, ws worldstate.WorldState, act *planning.Action, body Body) Result {
	if !act.IsApplicable(ws) {
		return Result{Status: Failed, Err: errorx.Newf(errorx.PreconditionViolated,
			"action %q's preconditions no longer hold", act.Name())}
	}

	inputs, err := r.resolveInputs(bb, act)
	if err != nil {
		return Result{Status: Failed, Err: err}
	}

	result := r.invoke(ctx, act, inputs, body)
	if result.Status == Succeeded {
		r.BindOutputs(bb, act, result.Outputs)
	}
	return result
}

// ExecuteDeferred behaves like Execute except it never writes outputs to
// bb itself; the caller (pkg/process's concurrent driver) is responsible
// for calling BindOutputs once for every dispatched action, in the
// deterministic order spec.md §5 requires (by action name, then
// declaration sequence), after every action in the tick has finished.
func (r *Runtime) ExecuteDeferred(ctx context.Context, bb *blackboard.Blackboard, ws worldstate.WorldState, act *planning.Action, body Body) Result {
	if !act.IsApplicable(ws) {
		return Result{Status: Failed, Err: errorx.Newf(errorx.PreconditionViolated,
			"action %q's preconditions no longer hold", act.Name())}
	}

	inputs, err := r.resolveInputs(bb, act)
	if err != nil {
		return Result{Status: Failed, Err: err}
	}

	return r.invoke(ctx, act, inputs, body)
}

func (r *Runtime) invoke(ctx context.Context, act *planning.Action, inputs map[string]any, body Body) Result {
	var outputs map[string]any
	runErr := qos.Do(ctx, r.policy, func(ctx context.Context) (bodyErr error) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error(ctx, "action body panicked", "action", act.Name(), "panic", rec, "stack", string(debug.Stack()))
				bodyErr = errorx.Newf(errorx.ExternalFatal, "action %q panicked", act.Name())
			}
		}()
		o, bodyErr := body(ctx, inputs)
		outputs = o
		return bodyErr
	})

	switch {
	case runErr == nil:
		return Result{Status: Succeeded, Outputs: outputs}
	case isSignal(runErr, ErrPause):
		return Result{Status: Paused, Err: runErr}
	case isSignal(runErr, ErrWait):
		return Result{Status: Waiting, Err: runErr}
	default:
		r.logger.Warn(ctx, "action execution failed", "action", act.Name(), "error", runErr)
		return Result{Status: Failed, Err: runErr}
	}
}

func isSignal(err error, signal error) bool {
	if err == signal {
		return true
	}
	var exhausted *qos.ExhaustedError
	if e, ok := err.(*qos.ExhaustedError); ok {
		exhausted = e
	}
	return exhausted != nil && exhausted.LastError == signal
}

// resolveInputs looks up each of act's declared input bindings on bb,
// first by explicit binding name, falling back to the lower-cased
// simple-type-name convention (blackboard.Env), per spec.md §4.1.
func (r *Runtime) resolveInputs(bb *blackboard.Blackboard, act *planning.Action) (map[string]any, error) {
	env := bb.Env()
	inputs := make(map[string]any, len(act.Inputs()))
	for _, binding := range act.Inputs() {
		v, ok := env.Lookup(binding.Name)
		if !ok {
			return nil, errorx.Newf(errorx.InputMissing,
				"action %q requires binding %q (type %s) which is not present on the blackboard",
				act.Name(), binding.Name, binding.Type)
		}
		inputs[binding.Name] = v
	}
	return inputs, nil
}

// BindOutputs records each declared output binding present in outputs onto
// bb. An output the body did not provide is silently skipped: a Body may
// legitimately produce only a subset of its declared outputs when an
// action partially completes under a Paused/Waiting-adjacent success path.
func (r *Runtime) BindOutputs(bb *blackboard.Blackboard, act *planning.Action, outputs map[string]any) {
	for _, binding := range act.Outputs() {
		v, ok := outputs[binding.Name]
		if !ok {
			continue
		}
		bb.Bind(binding.Name, v)
	}
}
