// Command demo runs the zoo scenario from spec.md §8 (scenarios 1-2): a
// two-action agent that opens an elephant's cage before feeding it, driven
// to completion by a GOAP planner and a sequential process driver.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/embabel/agent-core-go/pkg/action"
	"github.com/embabel/agent-core-go/pkg/condition"
	"github.com/embabel/agent-core-go/pkg/event"
	"github.com/embabel/agent-core-go/pkg/planning"
	"github.com/embabel/agent-core-go/pkg/process"
	"github.com/embabel/agent-core-go/pkg/qos"
)

func zooAgent() *planning.Agent {
	openCage := planning.NewAction("OpenCage",
		planning.WithDescription("unlock and swing open the elephant enclosure gate"),
		planning.WithEffects(condition.NewEffectSpec("cageOpen", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))

	feed := planning.NewAction("Feed",
		planning.WithDescription("distribute the elephant's feed ration"),
		planning.WithPreconditions(condition.NewEffectSpec("cageOpen", condition.TRUE)),
		planning.WithEffects(condition.NewEffectSpec("elephantFed", condition.TRUE)),
		planning.WithCost(planning.Constant(1)))

	elephantFed := planning.NewGoal("ElephantFed",
		planning.WithGoalPreconditions(condition.NewEffectSpec("elephantFed", condition.TRUE)),
		planning.WithGoalValue(planning.Constant(10)))

	agent, err := planning.NewBuilder("zoo").
		Description("keeps the elephant enclosure fed and its gate secured").
		Provider("demo").
		Actions(openCage, feed).
		Goal(elephantFed).
		Build()
	if err != nil {
		log.Fatalf("building zoo agent: %v", err)
	}
	return agent
}

func zooBodies() map[string]action.Body {
	return map[string]action.Body{
		"OpenCage": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			fmt.Println("opening the cage...")
			return map[string]any{}, nil
		},
		"Feed": func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
			fmt.Println("feeding the elephant...")
			return map[string]any{}, nil
		},
	}
}

func main() {
	ctx := context.Background()

	bus := event.NewBus(func(sub event.Subscriber, evt event.Event, err error) {
		log.Printf("listener error handling %s event: %v", evt.Kind, err)
	})
	_, _ = bus.Register(event.SubscriberFunc(func(ctx context.Context, evt event.Event) error {
		fmt.Printf("[event] %s: %s\n", evt.Kind, evt.Text)
		return nil
	}))

	agent := zooAgent()
	p, err := process.New(process.NewProcessID(agent.Name()), agent, zooBodies(), process.Options{
		PlannerType:              process.GOAP,
		OutputChannel:            bus,
		RetryPolicy:              qos.DefaultPolicy(),
		EarlyTerminationPolicies: []process.EarlyTerminationPolicy{process.OnStuck()},
	})
	if err != nil {
		log.Fatalf("creating process: %v", err)
	}

	engine := process.NewInMemoryEngine()
	engine.Run(ctx, p.ID, p, process.SequentialDriver{})
	if err := engine.Wait(ctx, p.ID); err != nil {
		log.Fatalf("process failed: %v", err)
	}

	fmt.Println("status:", p.StatusValue())
	for _, step := range p.History() {
		fmt.Printf("  %d. %s -> %s\n", step.Seq, step.ActionName, step.Status)
	}
}
