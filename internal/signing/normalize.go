package signing

import (
	"fmt"

	"goalflow/internal/goal"
)

// Absent is the sentinel substituted for every optional field that
// carries no value, so that absent-vs-present cannot be exploited: a
// field that is missing normalizes to exactly the same bytes as a field
// explicitly unset.
const Absent = "undefined"

// Normalize serializes the security-relevant fields of a goal event
// into the canonical signing payload.
//
// The field set is enumerated here and nowhere else: identity, commit
// coordinates, state, phase, version, description, timestamp, the
// fulfillment and approval blocks, preconditions, and the provenance
// chain. Everything else on the event (URLs, extension data, error
// text, push metadata, the signature itself) is excluded by
// construction.
func Normalize(e *goal.Event) ([]byte, error) {
	payload := map[string]any{
		"environment": orAbsent(e.Environment),
		"unique_name": orAbsent(e.UniqueName),
		"name":        orAbsent(e.Name),

		"goal_set":    orAbsent(e.GoalSet),
		"goal_set_id": orAbsent(e.GoalSetID),

		"sha":    orAbsent(e.SHA),
		"branch": orAbsent(e.Branch),
		"repo": map[string]any{
			"name":        orAbsent(e.Repo.Name),
			"owner":       orAbsent(e.Repo.Owner),
			"provider_id": orAbsent(e.Repo.ProviderID),
		},

		"state":       orAbsent(string(e.State)),
		"phase":       orAbsent(e.Phase),
		"description": orAbsent(e.Description),
		"version":     e.Version,
		"ts":          e.Ts,

		"fulfillment": map[string]any{
			"method":       orAbsent(e.Fulfillment.Method),
			"name":         orAbsent(e.Fulfillment.Name),
			"registration": orAbsent(e.Fulfillment.Registration),
		},

		"approval":     approvalPayload(e.Approval),
		"pre_approval": approvalPayload(e.PreApproval),

		"retry_feasible":        e.RetryFeasible,
		"approval_required":     e.ApprovalRequired,
		"pre_approval_required": e.PreApprovalRequired,

		"pre_conditions": preconditionsPayload(e.PreConditions),
		"provenance":     provenancePayload(e.Provenance),
	}

	b, err := marshalCanonical(payload)
	if err != nil {
		return nil, fmt.Errorf("normalize goal %s: %w", e.Key().String(), err)
	}
	return b, nil
}

func orAbsent(s string) string {
	if s == "" {
		return Absent
	}
	return s
}

// approvalPayload normalizes an approval block. A nil block becomes the
// sentinel, not an empty object, so nil and zero-valued pointers are
// distinguishable in the payload.
func approvalPayload(a *goal.Approval) any {
	if a == nil {
		return Absent
	}
	return map[string]any{
		"user_id":        orAbsent(a.UserID),
		"channel_id":     orAbsent(a.ChannelID),
		"correlation_id": orAbsent(a.CorrelationID),
		"ts":             a.Ts,
	}
}

func preconditionsPayload(pres []goal.Key) []any {
	out := make([]any, len(pres))
	for i, p := range pres {
		out[i] = map[string]any{
			"environment": orAbsent(p.Environment),
			"unique_name": orAbsent(p.UniqueName),
			"name":        orAbsent(p.Name),
		}
	}
	return out
}

func provenancePayload(chain []goal.Provenance) []any {
	out := make([]any, len(chain))
	for i, p := range chain {
		out[i] = map[string]any{
			"name":           orAbsent(p.Name),
			"registration":   orAbsent(p.Registration),
			"version":        orAbsent(p.Version),
			"correlation_id": orAbsent(p.CorrelationID),
			"ts":             p.Ts,
			"user_id":        orAbsent(p.UserID),
			"channel_id":     orAbsent(p.ChannelID),
		}
	}
	return out
}
