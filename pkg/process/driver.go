package process

import (
	"context"
	"sort"

	"github.com/embabel/agent-core-go/pkg/action"
	"github.com/embabel/agent-core-go/pkg/errorx"
	"github.com/embabel/agent-core-go/pkg/event"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/worldstate"
)

// Driver advances a Process until it reaches a terminal or
// paused/waiting status, per spec.md §4.4 (sequential) and §4.5
// (concurrent).
type Driver interface {
	Run(ctx context.Context, p *Process) error
}

func eventFromStatus(processID string, status Status, reason string) event.Event {
	kind := event.KindProgress
	if status == Completed {
		kind = event.KindCompletion
	} else if status == Failed || status == Stuck || status == Terminated {
		kind = event.KindFailure
	}
	return event.Event{Kind: kind, ProcessID: processID, Reason: reason, Text: status.String()}
}

// SequentialDriver executes a process one action per tick: plan, execute
// the first action of the chosen plan, apply its effects, repeat. This is
// spec.md §4.4's default execution mode.
type SequentialDriver struct{}

// Run drives p until it reaches COMPLETED, FAILED, STUCK, TERMINATED,
// PAUSED, or WAITING.
func (SequentialDriver) Run(ctx context.Context, p *Process) error {
	p.setStatus(Running)
	for {
		act, done, err := p.selectNext(ctx)
		if err != nil {
			return err
		}
		if done {
			p.setStatus(Completed)
			p.emit(eventFromStatus(p.ID, Completed, ""))
			return nil
		}
		if act == nil {
			p.setStatus(Stuck)
			p.checkEarlyTermination()
			return nil
		}

		body, ok := p.bodies[act.Name()]
		if !ok {
			return errorx.Newf(errorx.InputMissing, "process: no body registered for action %q", act.Name())
		}

		if p.options.Callbacks.BeforeActionLaunched != nil {
			p.options.Callbacks.BeforeActionLaunched(act)
		}
		if p.options.Callbacks.OnActionLaunched != nil {
			p.options.Callbacks.OnActionLaunched(act)
		}

		ws := p.worldState(ctx)
		result := p.runtime.Execute(ctx, p.bb, ws, act, body)

		if p.options.Callbacks.OnActionCompleted != nil {
			p.options.Callbacks.OnActionCompleted(act, result)
		}
		p.recordStep(StepRecord{ActionName: act.Name(), Status: result.Status, Err: result.Err})

		switch result.Status {
		case action.Succeeded:
			p.applyEffects(act)
		case action.Paused:
			p.setStatus(Paused)
			return nil
		case action.Waiting:
			p.setStatus(Waiting)
			return nil
		case action.Failed:
			p.setStatus(Failed)
			p.mu.Lock()
			p.reason = result.Err.Error()
			p.mu.Unlock()
			p.emit(eventFromStatus(p.ID, Failed, p.reason))
			return result.Err
		}

		if p.checkEarlyTermination() {
			return nil
		}
	}
}

// selectNext consults the configured planner and returns the single next
// action to execute, or done=true if the chosen goal is already
// satisfied, or act=nil if no goal is reachable or the only one reached is
// the Nirvana goal with nothing to do (STUCK).
func (p *Process) selectNext(ctx context.Context) (act *planning.Action, done bool, err error) {
	ws := p.worldState(ctx)
	system := p.agent.System()

	switch p.options.PlannerType {
	case UTILITY:
		choice, nextErr := p.utilPlan.Next(system, ws)
		if nextErr != nil {
			if kind, ok := errorx.KindOf(nextErr); ok && kind == errorx.PlanNotFound {
				return nil, false, nil
			}
			return nil, false, nextErr
		}
		p.mu.Lock()
		p.currentGoal = choice.Goal
		p.mu.Unlock()
		if choice.Action == nil {
			if choice.Goal.Name() == planning.NirvanaName {
				return nil, false, nil
			}
			return nil, true, nil
		}
		return choice.Action, false, nil
	default:
		plan, goal, planErr := p.goapPlan.Plan(ctx, system, p.determiner, ws)
		if planErr != nil {
			if kind, ok := errorx.KindOf(planErr); ok && kind == errorx.PlanNotFound {
				return nil, false, nil
			}
			return nil, false, planErr
		}
		p.mu.Lock()
		p.currentGoal = goal
		p.mu.Unlock()
		if len(plan.Actions) == 0 {
			if goal.Name() == planning.NirvanaName {
				return nil, false, nil
			}
			return nil, true, nil
		}
		return plan.Actions[0], false, nil
	}
}

// ConcurrentDriver executes every currently-achievable action from the
// chosen GOAP plan's action set in a single tick, per spec.md §4.5:
// dispatch runs each applicable action via Runtime.ExecuteDeferred so none
// writes to the blackboard until every dispatched action in the tick has
// finished, then merges outputs in deterministic order (by action name,
// then declaration sequence within Outputs) and reduces the tick's status
// by priority FAILED > PAUSED > WAITING > SUCCEEDED.
type ConcurrentDriver struct{}

// Run drives p until it reaches a terminal, paused, or waiting status.
func (ConcurrentDriver) Run(ctx context.Context, p *Process) error {
	p.setStatus(Running)
	for {
		ws := p.worldState(ctx)
		system := p.agent.System()

		plan, goal, err := p.goapPlan.Plan(ctx, system, p.determiner, ws)
		if err != nil {
			if kind, ok := errorx.KindOf(err); ok && kind == errorx.PlanNotFound {
				p.setStatus(Stuck)
				p.checkEarlyTermination()
				return nil
			}
			return err
		}
		p.mu.Lock()
		p.currentGoal = goal
		p.mu.Unlock()

		if len(plan.Actions) == 0 {
			if goal.Name() == planning.NirvanaName {
				p.setStatus(Stuck)
				p.checkEarlyTermination()
				return nil
			}
			p.setStatus(Completed)
			p.emit(eventFromStatus(p.ID, Completed, ""))
			return nil
		}

		batch := achievableBatch(plan.Actions, ws)
		if len(batch) == 0 {
			batch = plan.Actions[:1]
		}

		results := p.dispatchConcurrently(ctx, batch, ws)

		sort.Slice(batch, func(i, j int) bool { return batch[i].Name() < batch[j].Name() })
		collisions := collidingActions(batch)

		worst := action.Succeeded
		var worstErr error
		for _, act := range batch {
			result := results[act.Name()]
			if _, collides := collisions[act.Name()]; collides && result.Status == action.Succeeded {
				result.Status = action.Failed
				result.Err = errorx.Newf(errorx.PreconditionViolated,
					"process: action %q's output binding collides with another action dispatched in this tick", act.Name())
			}
			if p.options.Callbacks.OnActionCompleted != nil {
				p.options.Callbacks.OnActionCompleted(act, result)
			}
			p.recordStep(StepRecord{ActionName: act.Name(), Status: result.Status, Err: result.Err})
			if statusPriority(result.Status) > statusPriority(worst) {
				worst = result.Status
				worstErr = result.Err
			}
			if result.Status == action.Succeeded {
				p.runtime.BindOutputs(p.bb, act, result.Outputs)
				p.applyEffects(act)
			}
		}

		switch worst {
		case action.Failed:
			p.setStatus(Failed)
			p.mu.Lock()
			p.reason = worstErr.Error()
			p.mu.Unlock()
			p.emit(eventFromStatus(p.ID, Failed, p.reason))
			return worstErr
		case action.Paused:
			p.setStatus(Paused)
			return nil
		case action.Waiting:
			p.setStatus(Waiting)
			return nil
		}

		if p.checkEarlyTermination() {
			return nil
		}
	}
}

// dispatchConcurrently runs every action in batch via ExecuteDeferred on
// its own goroutine against the shared ws, keyed by action name for the
// caller's deterministic post-barrier merge.
func (p *Process) dispatchConcurrently(ctx context.Context, batch []*planning.Action, ws worldstate.WorldState) map[string]action.Result {
	type pair struct {
		name   string
		result action.Result
	}
	out := make(chan pair, len(batch))
	for _, act := range batch {
		act := act
		body, ok := p.bodies[act.Name()]
		if !ok {
			out <- pair{act.Name(), action.Result{Status: action.Failed,
				Err: errorx.Newf(errorx.InputMissing, "process: no body registered for action %q", act.Name())}}
			continue
		}
		if p.options.Callbacks.BeforeActionLaunched != nil {
			p.options.Callbacks.BeforeActionLaunched(act)
		}
		if p.options.Callbacks.OnActionLaunched != nil {
			p.options.Callbacks.OnActionLaunched(act)
		}
		go func() {
			out <- pair{act.Name(), p.runtime.ExecuteDeferred(ctx, p.bb, ws, act, body)}
		}()
	}

	results := make(map[string]action.Result, len(batch))
	for range batch {
		pr := <-out
		results[pr.name] = pr.result
	}
	return results
}

// achievableBatch returns every planActions entry that is currently
// applicable against ws, not merely a contiguous prefix: an action later
// in the plan whose preconditions don't depend on an earlier, not-yet-run
// action is independently achievable this tick and must be included.
// An action is included at most once even if it repeats in the plan.
func achievableBatch(planActions []*planning.Action, ws worldstate.WorldState) []*planning.Action {
	var batch []*planning.Action
	seen := map[string]struct{}{}
	for _, act := range planActions {
		if _, dup := seen[act.Name()]; dup {
			continue
		}
		if !act.IsApplicable(ws) {
			continue
		}
		batch = append(batch, act)
		seen[act.Name()] = struct{}{}
	}
	return batch
}

// collidingActions returns the set of action names in batch whose declared
// Outputs() share a binding name with another batch action's Outputs(),
// per spec.md §4.5's invariant that no two concurrently dispatched actions
// may write the same binding in a single tick.
func collidingActions(batch []*planning.Action) map[string]struct{} {
	owners := map[string][]string{}
	for _, act := range batch {
		for _, out := range act.Outputs() {
			owners[out.Name] = append(owners[out.Name], act.Name())
		}
	}
	colliding := map[string]struct{}{}
	for _, names := range owners {
		if len(names) < 2 {
			continue
		}
		for _, name := range names {
			colliding[name] = struct{}{}
		}
	}
	return colliding
}

func statusPriority(s action.Status) int {
	switch s {
	case action.Failed:
		return 3
	case action.Paused:
		return 2
	case action.Waiting:
		return 1
	default:
		return 0
	}
}
