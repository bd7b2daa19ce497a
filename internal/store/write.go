package store

import (
	"context"
	"errors"
	"fmt"

	"goalflow/internal/goal"
)

// ErrStaleVersion is returned when an appended goal event collides with
// an existing (goal_set_id, environment, unique_name, version) row: the
// mutation was built from a base version another worker already
// superseded. Callers re-read and rebuild rather than retrying blindly.
var ErrStaleVersion = errors.New("goal event version already appended")

// AppendEvent appends one goal event to the log. The write is rejected
// with ErrStaleVersion when the goal's version slot is already taken;
// persistence is confirmed only when the append returns nil.
func (s *Store) AppendEvent(ctx context.Context, e goal.Event) error {
	externalURLs, err := jsonColumn(orEmptyExternalURLs(e.ExternalURLs))
	if err != nil {
		return fmt.Errorf("append goal event: %w", err)
	}
	preConditions, err := jsonColumn(orEmptyKeys(e.PreConditions))
	if err != nil {
		return fmt.Errorf("append goal event: %w", err)
	}
	fulfillment, err := jsonColumn(e.Fulfillment)
	if err != nil {
		return fmt.Errorf("append goal event: %w", err)
	}
	provenance, err := jsonColumn(orEmptyProvenance(e.Provenance))
	if err != nil {
		return fmt.Errorf("append goal event: %w", err)
	}
	approval, err := approvalColumn(e.Approval)
	if err != nil {
		return fmt.Errorf("append goal event: %w", err)
	}
	preApproval, err := approvalColumn(e.PreApproval)
	if err != nil {
		return fmt.Errorf("append goal event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO goal_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(goal_set_id, environment, unique_name, version) DO NOTHING
	`,
		e.GoalSetID, e.Environment, e.UniqueName, e.Name, e.GoalSet,
		e.SHA, e.Branch, e.Repo.Name, e.Repo.Owner, e.Repo.ProviderID,
		string(e.State), e.Phase, e.Description, e.URL, externalURLs,
		e.Version, e.Ts, preConditions, fulfillment, approval, preApproval,
		provenance, e.RetryFeasible, e.ApprovalRequired, e.PreApprovalRequired,
		e.Signature, e.Data, e.Error,
	)
	if err != nil {
		return fmt.Errorf("append goal event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append goal event: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("append goal %s version %d in %s: %w",
			e.Key().String(), e.Version, e.GoalSetID, ErrStaleVersion)
	}
	return nil
}

// AppendSet appends a goal-set record. Duplicate appends of the same
// (goal_set_id, state, ts) are silently ignored; the newest row per
// goal set is authoritative.
func (s *Store) AppendSet(ctx context.Context, gs goal.Set) error {
	goals, err := jsonColumn(orEmptyMembers(gs.Goals))
	if err != nil {
		return fmt.Errorf("append goal set: %w", err)
	}
	provenance, err := jsonColumn(orEmptyProvenance(gs.Provenance))
	if err != nil {
		return fmt.Errorf("append goal set: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO goal_sets (`+setColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(goal_set_id, state, ts) DO NOTHING
	`,
		gs.GoalSetID, gs.GoalSet, gs.SHA, gs.Branch,
		gs.Repo.Name, gs.Repo.Owner, gs.Repo.ProviderID,
		string(gs.State), goals, gs.Ts, provenance,
	)
	if err != nil {
		return fmt.Errorf("append goal set: %w", err)
	}
	return nil
}

// RecordPush stores the triggering push for a subject commit. The first
// write wins; replays of the same push are ignored.
func (s *Store) RecordPush(ctx context.Context, subject goal.CommitRef, push goal.Push, ts int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commits
		(repo_owner, repo_name, provider_id, sha, branch, author, before_sha, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_owner, repo_name, sha) DO NOTHING
	`,
		subject.Repo.Owner, subject.Repo.Name, subject.Repo.ProviderID,
		subject.SHA, subject.Branch, push.Author, push.BeforeSHA, ts,
	)
	if err != nil {
		return fmt.Errorf("record push: %w", err)
	}
	return nil
}

// JSON columns always hold arrays, never null, so empty slices are
// substituted before marshaling.

func orEmptyExternalURLs(v []goal.ExternalURL) []goal.ExternalURL {
	if v == nil {
		return []goal.ExternalURL{}
	}
	return v
}

func orEmptyKeys(v []goal.Key) []goal.Key {
	if v == nil {
		return []goal.Key{}
	}
	return v
}

func orEmptyProvenance(v []goal.Provenance) []goal.Provenance {
	if v == nil {
		return []goal.Provenance{}
	}
	return v
}

func orEmptyMembers(v []goal.SetMember) []goal.SetMember {
	if v == nil {
		return []goal.SetMember{}
	}
	return v
}
