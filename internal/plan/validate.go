package plan

import (
	"fmt"
	"strings"

	"goalflow/internal/goal"
)

// Validation error codes (E200-E299)
const (
	ErrPipelineNameEmpty  = "E201" // pipeline name is required
	ErrEnvironmentEmpty   = "E202" // no environment resolvable for a goal
	ErrNoGoals            = "E203" // at least one goal required
	ErrDuplicateGoal      = "E204" // duplicate goal identity
	ErrUnknownDependency  = "E205" // requires names an undeclared goal
	ErrInvalidFulfillment = "E206" // unknown fulfillment method
	ErrDependencyCycle    = "E207" // dependency graph has a cycle
)

// ValidationError reports one problem with a pipeline spec.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var fulfillmentMethods = map[string]bool{
	goal.FulfillSDM:        true,
	goal.FulfillSideEffect: true,
	goal.FulfillOther:      true,
	goal.FulfillContainer:  true,
}

// Validate checks a compiled pipeline spec.
// Returns all errors found (does not fail-fast).
//
// Unlike ephemeral runtime checks, a cycle in the dependency graph is a
// hard error here: a cyclic pipeline can never advance past planning.
func Validate(s *Spec) []ValidationError {
	var errs []ValidationError

	if s.Name == "" {
		errs = append(errs, ValidationError{
			Field: "name", Code: ErrPipelineNameEmpty,
			Message: "pipeline name is required",
		})
	}
	if len(s.Goals) == 0 {
		errs = append(errs, ValidationError{
			Field: "goals", Code: ErrNoGoals,
			Message: "at least one goal is required",
		})
		return errs
	}

	declared := map[goal.Key]bool{}
	for _, g := range s.Goals {
		k := g.key(s.Environment)
		if k.Environment == "" {
			errs = append(errs, ValidationError{
				Field: g.UniqueName, Code: ErrEnvironmentEmpty,
				Message: "no environment: set one on the goal or the pipeline",
			})
		}
		id := goal.Key{Environment: k.Environment, UniqueName: k.UniqueName}
		if declared[id] {
			errs = append(errs, ValidationError{
				Field: g.UniqueName, Code: ErrDuplicateGoal,
				Message: fmt.Sprintf("goal %s declared twice", id),
			})
		}
		declared[id] = true

		if !fulfillmentMethods[g.Fulfillment.Method] {
			errs = append(errs, ValidationError{
				Field: g.UniqueName, Code: ErrInvalidFulfillment,
				Message: fmt.Sprintf("unknown fulfillment method %q", g.Fulfillment.Method),
			})
		}
	}

	for _, g := range s.Goals {
		for _, dep := range g.Requires {
			key := resolveDependency(dep, g, s.Environment)
			id := goal.Key{Environment: key.Environment, UniqueName: key.UniqueName}
			if !declared[id] {
				errs = append(errs, ValidationError{
					Field: g.UniqueName, Code: ErrUnknownDependency,
					Message: fmt.Sprintf("requires undeclared goal %s", id),
				})
			}
		}
	}

	for _, cycle := range findCycles(s) {
		errs = append(errs, ValidationError{
			Field: "goals", Code: ErrDependencyCycle,
			Message: fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")),
		})
	}

	return errs
}

// resolveDependency turns a requires entry into a goal key. A bare name
// refers to the requiring goal's environment; "env/name" crosses
// environments.
func resolveDependency(dep string, g GoalSpec, defaultEnv string) goal.Key {
	if env, name, ok := strings.Cut(dep, "/"); ok {
		return goal.Key{Environment: env, UniqueName: name}
	}
	return goal.Key{Environment: g.key(defaultEnv).Environment, UniqueName: dep}
}
