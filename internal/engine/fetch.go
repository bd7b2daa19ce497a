package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"goalflow/internal/goal"
	"goalflow/internal/store"
)

// DefaultPageSize is the event-log page size used when fetching a goal
// set's events.
const DefaultPageSize = 200

// Fetcher loads the authoritative view of a goal set: all events for
// the subject commit, reduced to one record per goal, each annotated
// with the triggering push.
type Fetcher struct {
	store    *store.Store
	pageSize int
	log      *slog.Logger
}

// NewFetcher creates a fetcher reading from st.
func NewFetcher(st *store.Store, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{store: st, pageSize: DefaultPageSize, log: log}
}

// FetchGoals returns the reduced goals of the goal set identified by
// (subject, goalSetID). Events are read page by page until an empty
// page; the raw list is then reduced to one authoritative record per
// goal identity.
//
// Returns store.ErrCommitNotFound (wrapped) when no push is recorded
// for the subject, so callers can distinguish "unknown commit" from
// "commit with no goals".
func (f *Fetcher) FetchGoals(ctx context.Context, subject goal.CommitRef, goalSetID string) ([]goal.Event, error) {
	push, err := f.store.GetPush(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrCommitNotFound) {
			return nil, &ReactionError{
				Code:      ErrCodeMissingSubject,
				Message:   fmt.Sprintf("no push recorded for %s/%s@%s", subject.Repo.Owner, subject.Repo.Name, subject.SHA),
				GoalSetID: goalSetID,
				Err:       err,
			}
		}
		return nil, fmt.Errorf("load push for %s: %w", subject.SHA, err)
	}

	var raw []goal.Event
	for offset := 0; ; offset += f.pageSize {
		page, err := f.store.ListEvents(ctx, subject, goalSetID, offset, f.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list goal events at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		raw = append(raw, page...)
	}

	goals := goal.Reduce(raw)
	if len(goals) == 0 {
		f.log.Info("no goals for commit",
			"goal_set_id", goalSetID,
			"sha", subject.SHA)
		return nil, nil
	}

	for i := range goals {
		p := push
		goals[i].Push = &p
	}
	return goals, nil
}
