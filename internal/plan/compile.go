package plan

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"goalflow/internal/goal"
)

// CompileError reports a malformed pipeline definition.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses a CUE value into a pipeline Spec.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The CUE value should be the pipeline struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`pipeline: { ... }`)
//	spec, err := Compile(v.LookupPath(cue.ParsePath("pipeline")))
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, &CompileError{Field: "pipeline", Message: err.Error(), Pos: v.Pos()}
	}

	spec := &Spec{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: "name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, &CompileError{Field: "name", Message: err.Error(), Pos: nameVal.Pos()}
	}
	spec.Name = name

	envVal := v.LookupPath(cue.ParsePath("environment"))
	if envVal.Exists() {
		env, err := envVal.String()
		if err != nil {
			return nil, &CompileError{Field: "environment", Message: err.Error(), Pos: envVal.Pos()}
		}
		spec.Environment = env
	}

	goalsVal := v.LookupPath(cue.ParsePath("goals"))
	if !goalsVal.Exists() {
		return nil, &CompileError{Field: "goals", Message: "at least one goal is required", Pos: v.Pos()}
	}
	iter, err := goalsVal.List()
	if err != nil {
		return nil, &CompileError{Field: "goals", Message: err.Error(), Pos: goalsVal.Pos()}
	}
	for iter.Next() {
		g, err := parseGoal(iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Goals = append(spec.Goals, g)
	}
	if len(spec.Goals) == 0 {
		return nil, &CompileError{Field: "goals", Message: "at least one goal is required", Pos: goalsVal.Pos()}
	}

	return spec, nil
}

func parseGoal(v cue.Value) (GoalSpec, error) {
	var g GoalSpec

	uniqueVal := v.LookupPath(cue.ParsePath("unique_name"))
	if !uniqueVal.Exists() {
		return g, &CompileError{Field: "unique_name", Message: "unique_name is required", Pos: v.Pos()}
	}
	unique, err := uniqueVal.String()
	if err != nil {
		return g, &CompileError{Field: "unique_name", Message: err.Error(), Pos: uniqueVal.Pos()}
	}
	g.UniqueName = unique

	if g.Name, err = optString(v, "name"); err != nil {
		return g, err
	}
	if g.Environment, err = optString(v, "environment"); err != nil {
		return g, err
	}
	if g.Description, err = optString(v, "description"); err != nil {
		return g, err
	}

	g.Fulfillment, err = parseFulfillment(v.LookupPath(cue.ParsePath("fulfillment")), g.UniqueName)
	if err != nil {
		return g, err
	}

	reqVal := v.LookupPath(cue.ParsePath("requires"))
	if reqVal.Exists() {
		iter, err := reqVal.List()
		if err != nil {
			return g, &CompileError{Field: "requires", Message: err.Error(), Pos: reqVal.Pos()}
		}
		for iter.Next() {
			dep, err := iter.Value().String()
			if err != nil {
				return g, &CompileError{Field: "requires", Message: err.Error(), Pos: reqVal.Pos()}
			}
			g.Requires = append(g.Requires, dep)
		}
	}

	if g.RetryFeasible, err = optBool(v, "retry_feasible"); err != nil {
		return g, err
	}
	if g.ApprovalRequired, err = optBool(v, "approval_required"); err != nil {
		return g, err
	}
	if g.PreApprovalRequired, err = optBool(v, "pre_approval_required"); err != nil {
		return g, err
	}

	dataVal := v.LookupPath(cue.ParsePath("data"))
	if dataVal.Exists() {
		raw, err := dataVal.MarshalJSON()
		if err != nil {
			return g, &CompileError{Field: "data", Message: err.Error(), Pos: dataVal.Pos()}
		}
		if !json.Valid(raw) {
			return g, &CompileError{Field: "data", Message: "data must be a JSON-encodable object", Pos: dataVal.Pos()}
		}
		g.Data = string(raw)
	}

	return g, nil
}

func parseFulfillment(v cue.Value, uniqueName string) (goal.Fulfillment, error) {
	f := goal.Fulfillment{Method: goal.FulfillSDM, Name: uniqueName}
	if !v.Exists() {
		return f, nil
	}

	var err error
	var s string
	if s, err = optString(v, "method"); err != nil {
		return f, err
	}
	if s != "" {
		f.Method = s
	}
	if s, err = optString(v, "name"); err != nil {
		return f, err
	}
	if s != "" {
		f.Name = s
	}
	if f.Registration, err = optString(v, "registration"); err != nil {
		return f, err
	}
	return f, nil
}

func optString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return s, nil
}

func optBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return b, nil
}
