package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"goalflow/internal/goal"
)

// ErrCommitNotFound is returned when a subject commit has no recorded
// push: the commit cannot be located upstream.
var ErrCommitNotFound = errors.New("commit not found")

// ListEvents returns a page of raw goal events for a subject commit,
// optionally filtered to one goal set. Ordering is deterministic
// (ts ASC, version ASC, id ASC) so pagination is stable across workers.
// An empty page signals the end of the log.
func (s *Store) ListEvents(ctx context.Context, subject goal.CommitRef, goalSetID string, offset, limit int) ([]goal.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM goal_events
		WHERE repo_owner = ? AND repo_name = ? AND sha = ?`
	args := []any{subject.Repo.Owner, subject.Repo.Name, subject.SHA}

	if goalSetID != "" {
		query += ` AND goal_set_id = ?`
		args = append(args, goalSetID)
	}
	query += `
		ORDER BY ts ASC, version ASC, id ASC
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return s.queryEvents(ctx, query, args...)
}

// ListGoalSetEvents returns every raw event for one goal set, in
// deterministic order. Used by the timeout sweep and goal-set
// cancellation, which operate per goal set rather than per commit.
func (s *Store) ListGoalSetEvents(ctx context.Context, goalSetID string) ([]goal.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM goal_events
		WHERE goal_set_id = ?
		ORDER BY ts ASC, version ASC, id ASC
	`, goalSetID)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]goal.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query goal events: %w", err)
	}
	defer rows.Close()

	events := []goal.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goal events: %w", err)
	}
	return events, nil
}

// LatestSet returns the authoritative (newest appended) goal-set record
// for the given id. Returns sql.ErrNoRows when the goal set is unknown.
func (s *Store) LatestSet(ctx context.Context, goalSetID string) (goal.Set, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+setColumns+`
		FROM goal_sets
		WHERE goal_set_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, goalSetID)
	return scanSet(row)
}

// ListPendingSets returns the authoritative record of every goal set
// whose aggregate state is not yet terminal, ordered oldest first. Used
// by the reconciliation and timeout sweeps and the operator surface.
func (s *Store) ListPendingSets(ctx context.Context) ([]goal.Set, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+setColumns+`
		FROM goal_sets gs
		WHERE id = (SELECT MAX(id) FROM goal_sets WHERE goal_set_id = gs.goal_set_id)
		ORDER BY ts ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending goal sets: %w", err)
	}
	defer rows.Close()

	pending := []goal.Set{}
	for rows.Next() {
		gs, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		if gs.State.Terminal() {
			continue
		}
		pending = append(pending, gs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending goal sets: %w", err)
	}
	return pending, nil
}

// GetPush returns the recorded push metadata for a subject commit, or
// ErrCommitNotFound when the commit was never recorded.
func (s *Store) GetPush(ctx context.Context, subject goal.CommitRef) (goal.Push, error) {
	var p goal.Push
	err := s.db.QueryRowContext(ctx, `
		SELECT branch, author, before_sha
		FROM commits
		WHERE repo_owner = ? AND repo_name = ? AND sha = ?
	`, subject.Repo.Owner, subject.Repo.Name, subject.SHA).
		Scan(&p.Branch, &p.Author, &p.BeforeSHA)
	if errors.Is(err, sql.ErrNoRows) {
		return goal.Push{}, fmt.Errorf("push for %s/%s@%s: %w",
			subject.Repo.Owner, subject.Repo.Name, subject.SHA, ErrCommitNotFound)
	}
	if err != nil {
		return goal.Push{}, fmt.Errorf("query push: %w", err)
	}
	p.AfterSHA = subject.SHA
	return p, nil
}
