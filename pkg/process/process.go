// Package process implements the agent-process state machine of spec.md
// §4.4/§4.5: CREATED → RUNNING → {COMPLETED, FAILED, STUCK, PAUSED,
// WAITING, TERMINATED}, driven by a pluggable sequential or concurrent
// driver over a planning.System, a blackboard, and the planner chosen by
// Options.PlannerType.
package process

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/embabel/agent-core-go/pkg/action"
	"github.com/embabel/agent-core-go/pkg/blackboard"
	"github.com/embabel/agent-core-go/pkg/event"
	"github.com/embabel/agent-core-go/pkg/expr"
	"github.com/embabel/agent-core-go/pkg/goap"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/qos"
	"github.com/embabel/agent-core-go/pkg/telemetry"
	"github.com/embabel/agent-core-go/pkg/utility"
	"github.com/embabel/agent-core-go/pkg/worldstate"
	"github.com/google/uuid"
)

// Status is a process's lifecycle state.
type Status int

const (
	Created Status = iota
	Running
	Completed
	Failed
	Stuck
	Paused
	Waiting
	Terminated
)

// String renders the Status for logs and test assertions.
func (s Status) String() string {
	switch s {
	case Created:
		return "CREATED"
	case Running:
		return "RUNNING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	case Stuck:
		return "STUCK"
	case Paused:
		return "PAUSED"
	case Waiting:
		return "WAITING"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s ends the process's run loop outright
// (COMPLETED, FAILED, STUCK, TERMINATED). PAUSED and WAITING are
// non-terminal and resumable per spec.md §6.
func (s Status) IsTerminal() bool {
	switch s {
	case Completed, Failed, Stuck, Terminated:
		return true
	default:
		return false
	}
}

// PlannerType selects which planner a process consults each tick.
type PlannerType int

const (
	GOAP PlannerType = iota
	UTILITY
)

// EarlyTerminationPolicy is evaluated after every step; the first one to
// trigger transitions the process to TERMINATED with its Reason.
type EarlyTerminationPolicy struct {
	Name string
	// UtilityOnly marks a policy meaningful only when Options.PlannerType
	// is UTILITY, used solely to detect the authoring-mistake combination
	// documented in SPEC_FULL.md §9 open question 4.
	UtilityOnly bool
	Predicate   func(p *Process) (trigger bool, reason string)
}

// OnStuck is the built-in policy mapping STUCK to a clean, non-error
// termination, per spec.md §4.4.
func OnStuck() EarlyTerminationPolicy {
	return EarlyTerminationPolicy{
		Name: "ON_STUCK",
		Predicate: func(p *Process) (bool, string) {
			return p.StatusValue() == Stuck, "stuck"
		},
	}
}

// Callbacks are invoked single-threaded from the driver around action
// dispatch, per spec.md §4.5.
type Callbacks struct {
	BeforeActionLaunched func(a *planning.Action)
	OnActionLaunched     func(a *planning.Action)
	OnActionCompleted    func(a *planning.Action, result action.Result)
}

// Options configures a Process at construction time. See spec.md §6.
type Options struct {
	PlannerType              PlannerType
	Verbosity                int
	ForUser                  string
	OutputChannel            event.Bus
	Listeners                []event.Subscriber
	Blackboard               *blackboard.Blackboard
	EarlyTerminationPolicies []EarlyTerminationPolicy
	RetryPolicy              qos.Policy
	Callbacks                Callbacks
	Logger                   telemetry.Logger
}

// StepRecord is one executed action's outcome in a process's history.
type StepRecord struct {
	Seq        int
	ActionName string
	Status     action.Status
	Err        error
	Timestamp  time.Time
}

// Process is a single run of an agent's planning system against a
// blackboard it exclusively owns. Create one with New and drive it with a
// Driver via an Engine (see engine.go), or call a Driver's Run directly for
// manual control in tests.
type Process struct {
	mu sync.Mutex

	ID       string
	ParentID string

	agent   *planning.Agent
	options Options

	bb *blackboard.Blackboard

	status      Status
	currentGoal *planning.Goal
	history     []StepRecord
	reason      string
	createdAt   time.Time

	bodies     map[string]action.Body
	runtime    *action.Runtime
	determiner *worldstate.Determiner
	goapPlan   *goap.Planner
	utilPlan   *utility.Planner

	effectState worldstate.WorldState
}

// NewProcessID returns a globally unique process identifier, prefixed with
// a normalized agent name to keep logs, metrics, and traces readable.
// Grounded on the teacher's generateRunID.
func NewProcessID(agentName string) string {
	prefix := strings.ReplaceAll(agentName, ".", "-")
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// New constructs a Process for agent, with bodies providing the callable
// behind every action the agent's system names. New does not start the
// process; call a Driver's Run (directly or via an Engine) to begin
// executing ticks.
func New(id string, agent *planning.Agent, bodies map[string]action.Body, opts Options) (*Process, error) {
	if agent == nil {
		return nil, fmt.Errorf("process: agent is required")
	}
	bb := opts.Blackboard
	if bb == nil {
		bb = blackboard.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}

	evaluators := make(map[string]worldstate.Evaluator, len(agent.Evaluators()))
	for name, ce := range agent.Evaluators() {
		ce := ce
		evaluators[name] = func(env expr.Env) (bool, error) { return ce(env) }
	}
	determiner := worldstate.NewDeterminer(bb, evaluators, logger)

	p := &Process{
		ID:          id,
		agent:       agent,
		options:     opts,
		bb:          bb,
		status:      Created,
		createdAt:   time.Now(),
		bodies:      bodies,
		runtime:     action.NewRuntime(opts.RetryPolicy, logger),
		determiner:  determiner,
		goapPlan:    goap.NewPlanner(goap.WithUnknownStrategy(goap.EnumerateVariants(4))),
		utilPlan:    utility.NewPlanner(),
		effectState: worldstate.Empty(),
	}

	p.registerListeners()
	p.warnIfUtilityPolicyMismatch()

	return p, nil
}

func (p *Process) registerListeners() {
	if p.options.OutputChannel == nil {
		return
	}
	for _, l := range p.options.Listeners {
		_, _ = p.options.OutputChannel.Register(l)
	}
}

// warnIfUtilityPolicyMismatch implements SPEC_FULL.md §9 open question 4:
// a GOAP process configured with a utility-only early-termination policy
// is very likely an authoring mistake, so a warning is logged once at
// construction. PlannerType itself is never coerced here: the planner used
// each tick is solely a function of which entry point (Plan vs Next) the
// driver calls.
func (p *Process) warnIfUtilityPolicyMismatch() {
	if p.options.PlannerType != GOAP {
		return
	}
	for _, policy := range p.options.EarlyTerminationPolicies {
		if policy.UtilityOnly {
			p.emit(event.Event{
				Kind:  event.KindLogging,
				Level: event.LevelWarn,
				Text:  fmt.Sprintf("process configured with GOAP planner but utility-only early-termination policy %q", policy.Name),
			})
			return
		}
	}
}

// StatusValue returns the process's current lifecycle state.
func (p *Process) StatusValue() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// CurrentGoal returns the goal selected by the most recent successful
// plan, or nil before the first tick.
func (p *Process) CurrentGoal() *planning.Goal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentGoal
}

// History returns a copy of the process's executed-action history.
func (p *Process) History() []StepRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StepRecord, len(p.history))
	copy(out, p.history)
	return out
}

// Reason returns the recorded reason for a FAILED or TERMINATED status.
func (p *Process) Reason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// Blackboard returns the process's exclusively owned blackboard.
func (p *Process) Blackboard() *blackboard.Blackboard { return p.bb }

// Agent returns the agent this process is running.
func (p *Process) Agent() *planning.Agent { return p.agent }

func (p *Process) emit(evt event.Event) {
	if p.options.OutputChannel == nil {
		return
	}
	evt.ProcessID = p.ID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	p.options.OutputChannel.Publish(context.Background(), evt)
}

func (p *Process) setStatus(s Status) {
	p.mu.Lock()
	p.status = s
	p.mu.Unlock()
}

func (p *Process) recordStep(rec StepRecord) {
	p.mu.Lock()
	rec.Seq = len(p.history)
	p.history = append(p.history, rec)
	p.mu.Unlock()
}

// checkEarlyTermination evaluates every configured policy in order,
// transitioning to TERMINATED on the first trigger. Called by drivers
// after every step, per spec.md §4.4.
func (p *Process) checkEarlyTermination() bool {
	for _, policy := range p.options.EarlyTerminationPolicies {
		if trigger, reason := policy.Predicate(p); trigger {
			p.mu.Lock()
			p.status = Terminated
			p.reason = reason
			p.mu.Unlock()
			p.emit(event.Event{Kind: event.KindFailure, Level: event.LevelWarn, Reason: reason})
			return true
		}
	}
	return false
}

// worldState computes the tick's world state: evaluator-derived conditions
// overlaid by every concrete (TRUE/FALSE) condition accumulated from prior
// actions' effects, per spec.md §4.2 step 2's "worldState + action". The
// overlay takes precedence so that a condition an action has already
// asserted is never re-clobbered by a stale or absent evaluator reading.
func (p *Process) worldState(ctx context.Context) worldstate.WorldState {
	base := p.determiner.DetermineWorldState(ctx)
	return base.WithEffects(p.effectState.Known())
}

// applyEffects folds act's effects into the process's accumulated effect
// state, used to seed worldState on every subsequent tick.
func (p *Process) applyEffects(act *planning.Action) {
	p.mu.Lock()
	p.effectState = p.effectState.WithEffects(act.Effects())
	p.mu.Unlock()
}
