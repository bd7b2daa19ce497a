package engine

import (
	"context"
	"fmt"
	"log/slog"

	"goalflow/internal/goal"
)

// CascadeFailure propagates a terminal non-success outcome of trigger
// to its downstream goals: every sibling that depends directly or
// transitively on trigger and is still planned is moved to the cascade
// target of trigger's state (skipped after failure or stopped, canceled
// after canceled).
//
// The dependency graph is acyclic by construction, but the walk keeps a
// visited set so a malformed graph cannot loop.
func CascadeFailure(ctx context.Context, m *Mutator, trigger goal.Event, siblings []goal.Event, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	target, err := trigger.State.CascadeTarget()
	if err != nil {
		return fmt.Errorf("cascade from %s: %w", trigger.Key(), err)
	}

	visited := map[goal.Key]bool{}
	affected := collectDownstream(trigger.Key(), siblings, visited)

	for _, dep := range affected {
		if dep.State != goal.Planned {
			continue
		}
		phase := ""
		_, err := m.Update(ctx, dep, Update{
			State:       target,
			Description: cascadeDescription(target, dep, trigger),
			Phase:       &phase,
		})
		if err != nil {
			return err
		}
		log.Info("goal cascaded",
			"goal_set_id", dep.GoalSetID,
			"goal", dep.Key().String(),
			"state", string(target),
			"cause", trigger.Key().String())
	}
	return nil
}

// collectDownstream walks the dependency graph from key and returns
// every transitive dependent among siblings, in depth-first order.
func collectDownstream(key goal.Key, siblings []goal.Event, visited map[goal.Key]bool) []goal.Event {
	var out []goal.Event
	for i := range siblings {
		dep := siblings[i]
		k := dep.Key()
		if visited[k] || !dep.DependsOn(key) {
			continue
		}
		visited[k] = true
		out = append(out, dep)
		out = append(out, collectDownstream(k, siblings, visited)...)
	}
	return out
}

func cascadeDescription(target goal.State, dep, trigger goal.Event) string {
	if target == goal.Canceled {
		return fmt.Sprintf("Canceled: %s (%s canceled)", dep.Name, trigger.Name)
	}
	return fmt.Sprintf("Skipped: %s (%s %s)", dep.Name, trigger.Name, trigger.State)
}
