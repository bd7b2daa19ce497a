package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"goalflow/internal/goal"
)

// JSON-valued columns. Absent optional blocks (approval, pre_approval)
// are stored as SQL NULL, not as the JSON literal "null", so the
// round-trip preserves nil pointers exactly.

func jsonColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal column: %w", err)
	}
	return string(b), nil
}

func approvalColumn(a *goal.Approval) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	s, err := jsonColumn(a)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

func scanApproval(col sql.NullString) (*goal.Approval, error) {
	if !col.Valid {
		return nil, nil
	}
	var a goal.Approval
	if err := json.Unmarshal([]byte(col.String), &a); err != nil {
		return nil, fmt.Errorf("unmarshal approval column: %w", err)
	}
	return &a, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const eventColumns = `goal_set_id, environment, unique_name, name, goal_set,
	sha, branch, repo_name, repo_owner, provider_id,
	state, phase, description, url, external_urls,
	version, ts, pre_conditions, fulfillment, approval, pre_approval,
	provenance, retry_feasible, approval_required, pre_approval_required,
	signature, data, error`

func scanEvent(row rowScanner) (goal.Event, error) {
	var (
		e                      goal.Event
		state                  string
		externalURLs           string
		preConditions          string
		fulfillment            string
		approval, preApproval  sql.NullString
		provenance             string
		retry, apprReq, preReq bool
	)

	err := row.Scan(
		&e.GoalSetID, &e.Environment, &e.UniqueName, &e.Name, &e.GoalSet,
		&e.SHA, &e.Branch, &e.Repo.Name, &e.Repo.Owner, &e.Repo.ProviderID,
		&state, &e.Phase, &e.Description, &e.URL, &externalURLs,
		&e.Version, &e.Ts, &preConditions, &fulfillment, &approval, &preApproval,
		&provenance, &retry, &apprReq, &preReq,
		&e.Signature, &e.Data, &e.Error,
	)
	if err != nil {
		return goal.Event{}, fmt.Errorf("scan goal event: %w", err)
	}

	e.State = goal.State(state)
	e.RetryFeasible = retry
	e.ApprovalRequired = apprReq
	e.PreApprovalRequired = preReq

	if err := json.Unmarshal([]byte(externalURLs), &e.ExternalURLs); err != nil {
		return goal.Event{}, fmt.Errorf("unmarshal external_urls: %w", err)
	}
	if err := json.Unmarshal([]byte(preConditions), &e.PreConditions); err != nil {
		return goal.Event{}, fmt.Errorf("unmarshal pre_conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(fulfillment), &e.Fulfillment); err != nil {
		return goal.Event{}, fmt.Errorf("unmarshal fulfillment: %w", err)
	}
	if err := json.Unmarshal([]byte(provenance), &e.Provenance); err != nil {
		return goal.Event{}, fmt.Errorf("unmarshal provenance: %w", err)
	}
	if e.Approval, err = scanApproval(approval); err != nil {
		return goal.Event{}, err
	}
	if e.PreApproval, err = scanApproval(preApproval); err != nil {
		return goal.Event{}, err
	}

	return e, nil
}

const setColumns = `goal_set_id, goal_set, sha, branch,
	repo_name, repo_owner, provider_id, state, goals, ts, provenance`

func scanSet(row rowScanner) (goal.Set, error) {
	var (
		gs         goal.Set
		state      string
		goals      string
		provenance string
	)

	err := row.Scan(
		&gs.GoalSetID, &gs.GoalSet, &gs.SHA, &gs.Branch,
		&gs.Repo.Name, &gs.Repo.Owner, &gs.Repo.ProviderID,
		&state, &goals, &gs.Ts, &provenance,
	)
	if err != nil {
		return goal.Set{}, fmt.Errorf("scan goal set: %w", err)
	}

	gs.State = goal.State(state)
	if err := json.Unmarshal([]byte(goals), &gs.Goals); err != nil {
		return goal.Set{}, fmt.Errorf("unmarshal goals: %w", err)
	}
	if err := json.Unmarshal([]byte(provenance), &gs.Provenance); err != nil {
		return goal.Set{}, fmt.Errorf("unmarshal provenance: %w", err)
	}
	return gs, nil
}
