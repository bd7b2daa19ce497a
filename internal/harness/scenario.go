package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"goalflow/internal/goal"
	"goalflow/internal/plan"
)

// Scenario defines one conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pipeline declares the goals planned at scenario start.
	Pipeline Pipeline `yaml:"pipeline"`

	// Steps are the goal outcomes reported, in order. Each step flows
	// through the engine exactly as a fulfillment report would.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final reduced goal set.
	Assertions []Assertion `yaml:"assertions"`

	// CorrelationID is an optional fixed correlation ID for
	// byte-identical event logs across runs. Defaults to a
	// scenario-independent constant.
	CorrelationID string `yaml:"correlation_id,omitempty"`
}

// Pipeline mirrors a plan spec in scenario YAML.
type Pipeline struct {
	Name        string         `yaml:"name"`
	Environment string         `yaml:"environment"`
	Goals       []PipelineGoal `yaml:"goals"`
}

// PipelineGoal is one declared goal.
type PipelineGoal struct {
	UniqueName          string      `yaml:"unique_name"`
	Name                string      `yaml:"name,omitempty"`
	Environment         string      `yaml:"environment,omitempty"`
	Description         string      `yaml:"description,omitempty"`
	Requires            []string    `yaml:"requires,omitempty"`
	RetryFeasible       bool        `yaml:"retry_feasible,omitempty"`
	ApprovalRequired    bool        `yaml:"approval_required,omitempty"`
	PreApprovalRequired bool        `yaml:"pre_approval_required,omitempty"`
	Fulfillment         Fulfillment `yaml:"fulfillment,omitempty"`
}

// Fulfillment names the executing mechanism; empty fields take the
// plan defaults.
type Fulfillment struct {
	Method       string `yaml:"method,omitempty"`
	Name         string `yaml:"name,omitempty"`
	Registration string `yaml:"registration,omitempty"`
}

// Step reports one goal outcome.
type Step struct {
	// Goal names the goal by unique name; "env/name" crosses
	// environments.
	Goal string `yaml:"goal"`

	// State is the reported outcome state.
	State string `yaml:"state"`

	Description string `yaml:"description,omitempty"`
	Error       string `yaml:"error,omitempty"`

	// Advance moves the scenario clock forward before the report, e.g.
	// "90s".
	Advance string `yaml:"advance,omitempty"`

	// Approve grants an approval as the named user instead of a plain
	// state report.
	Approve string `yaml:"approve,omitempty"`

	// PreApprove grants a pre-approval as the named user.
	PreApprove string `yaml:"pre_approve,omitempty"`
}

// Assertion validates one goal, or the goal set itself.
type Assertion struct {
	// Goal asserts on the named goal's reduced record.
	Goal    string `yaml:"goal,omitempty"`
	State   string `yaml:"state,omitempty"`
	Version *int64 `yaml:"version,omitempty"`

	// SetState asserts on the latest goal-set record.
	SetState string `yaml:"set_state,omitempty"`
}

// LoadScenario reads one scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// LoadScenarioDir reads every *.yaml scenario under dir, sorted by
// filename for deterministic order.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var scenarios []*Scenario
	for _, path := range matches {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(sc.Pipeline.Goals) == 0 {
		return fmt.Errorf("pipeline has no goals")
	}
	for i, step := range sc.Steps {
		actions := 0
		if step.State != "" {
			if !goal.State(step.State).Valid() {
				return fmt.Errorf("step %d: unknown state %q", i+1, step.State)
			}
			actions++
		}
		if step.Approve != "" {
			actions++
		}
		if step.PreApprove != "" {
			actions++
		}
		if actions != 1 {
			return fmt.Errorf("step %d: exactly one of state, approve, pre_approve required", i+1)
		}
		if step.Goal == "" {
			return fmt.Errorf("step %d: goal is required", i+1)
		}
	}
	for i, a := range sc.Assertions {
		if a.Goal == "" && a.SetState == "" {
			return fmt.Errorf("assertion %d: goal or set_state required", i+1)
		}
		if a.State != "" && !goal.State(a.State).Valid() {
			return fmt.Errorf("assertion %d: unknown state %q", i+1, a.State)
		}
		if a.SetState != "" && !goal.State(a.SetState).Valid() {
			return fmt.Errorf("assertion %d: unknown state %q", i+1, a.SetState)
		}
	}
	if errs := plan.Validate(sc.spec()); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// spec converts the scenario pipeline into a plan spec.
func (sc *Scenario) spec() *plan.Spec {
	s := &plan.Spec{Name: sc.Pipeline.Name, Environment: sc.Pipeline.Environment}
	for _, g := range sc.Pipeline.Goals {
		gs := plan.GoalSpec{
			UniqueName:          g.UniqueName,
			Name:                g.Name,
			Environment:         g.Environment,
			Description:         g.Description,
			Requires:            g.Requires,
			RetryFeasible:       g.RetryFeasible,
			ApprovalRequired:    g.ApprovalRequired,
			PreApprovalRequired: g.PreApprovalRequired,
			Fulfillment: goal.Fulfillment{
				Method:       g.Fulfillment.Method,
				Name:         g.Fulfillment.Name,
				Registration: g.Fulfillment.Registration,
			},
		}
		if gs.Fulfillment.Method == "" {
			gs.Fulfillment.Method = goal.FulfillSDM
		}
		if gs.Fulfillment.Name == "" {
			gs.Fulfillment.Name = g.UniqueName
		}
		s.Goals = append(s.Goals, gs)
	}
	return s
}
