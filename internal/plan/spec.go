package plan

import "goalflow/internal/goal"

// Spec is a compiled pipeline definition: the goals to plan for each
// matching push, with their dependency edges.
type Spec struct {
	// Name labels goal sets planned from this spec.
	Name string `json:"name"`

	// Environment is the default environment for goals that do not name
	// their own.
	Environment string `json:"environment"`

	// Goals in declaration order. Declaration order is preserved into
	// the planned goal set so operators see the pipeline as written.
	Goals []GoalSpec `json:"goals"`
}

// GoalSpec is one goal of a pipeline definition.
type GoalSpec struct {
	// UniqueName is the goal's identity within its environment.
	UniqueName string `json:"unique_name"`

	// Name is the display label; defaults to UniqueName.
	Name string `json:"name,omitempty"`

	// Environment overrides the spec default when set.
	Environment string `json:"environment,omitempty"`

	Description string `json:"description,omitempty"`

	Fulfillment goal.Fulfillment `json:"fulfillment"`

	// Requires lists the unique names of goals that must succeed first.
	// A bare name refers to the same environment; "env/name" crosses
	// environments.
	Requires []string `json:"requires,omitempty"`

	RetryFeasible       bool `json:"retry_feasible,omitempty"`
	ApprovalRequired    bool `json:"approval_required,omitempty"`
	PreApprovalRequired bool `json:"pre_approval_required,omitempty"`

	// Data is an optional JSON object seeded into the goal's data
	// payload.
	Data string `json:"data,omitempty"`
}

// key resolves the goal's identity, applying the spec-level default
// environment.
func (g GoalSpec) key(defaultEnv string) goal.Key {
	env := g.Environment
	if env == "" {
		env = defaultEnv
	}
	name := g.Name
	if name == "" {
		name = g.UniqueName
	}
	return goal.Key{Environment: env, UniqueName: g.UniqueName, Name: name}
}
