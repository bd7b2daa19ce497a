package goal

// Key is the canonical identity of a goal within a goal set.
// Identity is (Environment, UniqueName); Name is a display label only
// and never participates in equality.
type Key struct {
	Environment string `json:"environment"`
	UniqueName  string `json:"unique_name"`
	Name        string `json:"name,omitempty"`
}

// Repo identifies the repository a goal's subject commit lives in.
type Repo struct {
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	ProviderID string `json:"provider_id"`
}

// CommitRef identifies the subject commit a goal set was produced for.
type CommitRef struct {
	Repo   Repo   `json:"repo"`
	Branch string `json:"branch"`
	SHA    string `json:"sha"`
}

// Fulfillment names the mechanism responsible for executing a goal.
type Fulfillment struct {
	Method       string `json:"method"`
	Name         string `json:"name"`
	Registration string `json:"registration,omitempty"`
}

// Fulfillment methods. SDM-managed goals are executed by this runtime;
// side-effect goals are observed, not executed; container goals can be
// handed to an external execution environment (see engine redirector).
const (
	FulfillSDM        = "sdm"
	FulfillSideEffect = "side-effect"
	FulfillOther      = "other"
	FulfillContainer  = "container"
)

// Approval records the provenance of a human approval action.
type Approval struct {
	UserID        string `json:"user_id,omitempty"`
	ChannelID     string `json:"channel_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Ts            int64  `json:"ts,omitempty"`
}

// Provenance is one audit-trail entry recording who or what performed a
// mutation. Entries are prepended on every mutation, oldest last; the
// chain is never truncated.
type Provenance struct {
	Name          string `json:"name"`
	Registration  string `json:"registration"`
	Version       string `json:"version"`
	CorrelationID string `json:"correlation_id"`
	Ts            int64  `json:"ts"`
	UserID        string `json:"user_id,omitempty"`
	ChannelID     string `json:"channel_id,omitempty"`
}

// Push carries the trigger metadata attached to fetched goals: who
// pushed the subject commit and the before/after coordinates.
type Push struct {
	Author    string `json:"author,omitempty"`
	BeforeSHA string `json:"before_sha,omitempty"`
	AfterSHA  string `json:"after_sha,omitempty"`
	Branch    string `json:"branch,omitempty"`
}

// ExternalURL is a labeled link published alongside a goal (build log,
// deployed endpoint, and so on).
type ExternalURL struct {
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// Event is one immutable, appended record describing a goal at a point
// in time. Multiple events share a goal identity; exactly one is
// authoritative at any instant, computed by Reduce.
type Event struct {
	Environment string `json:"environment"`
	UniqueName  string `json:"unique_name"`
	Name        string `json:"name"`

	GoalSet   string `json:"goal_set"`
	GoalSetID string `json:"goal_set_id"`

	SHA    string `json:"sha"`
	Branch string `json:"branch"`
	Repo   Repo   `json:"repo"`

	State       State  `json:"state"`
	Phase       string `json:"phase,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`

	ExternalURLs []ExternalURL `json:"external_urls,omitempty"`

	// Version increases by exactly 1 per mutation to this goal within
	// the goal set. It doubles as the optimistic-concurrency token at
	// the event log: appending a duplicate version is rejected.
	Version int64 `json:"version"`
	Ts      int64 `json:"ts"`

	PreConditions []Key       `json:"pre_conditions,omitempty"`
	Fulfillment   Fulfillment `json:"fulfillment"`

	Approval    *Approval `json:"approval,omitempty"`
	PreApproval *Approval `json:"pre_approval,omitempty"`

	Provenance []Provenance `json:"provenance"`

	RetryFeasible       bool `json:"retry_feasible"`
	ApprovalRequired    bool `json:"approval_required"`
	PreApprovalRequired bool `json:"pre_approval_required"`

	Signature string `json:"signature,omitempty"`

	// Data is an opaque JSON-encoded extension payload owned by
	// fulfillment implementations. The engine merges into it but never
	// interprets it.
	Data string `json:"data,omitempty"`

	Error string `json:"error,omitempty"`

	// Push is attached by the fetcher from the triggering push; it is
	// not part of the signed payload.
	Push *Push `json:"push,omitempty"`
}

// Key returns the identity of the goal this event describes.
func (e *Event) Key() Key {
	return Key{Environment: e.Environment, UniqueName: e.UniqueName, Name: e.Name}
}

// Subject returns the commit coordinates this event is attached to.
func (e *Event) Subject() CommitRef {
	return CommitRef{Repo: e.Repo, Branch: e.Branch, SHA: e.SHA}
}

// SetMember names one goal belonging to a goal set.
type SetMember struct {
	Name       string `json:"name"`
	UniqueName string `json:"unique_name"`
}

// Set is the goal-set level record: one per trigger, its state derived
// from the member goals by AggregateState. Like Event it is append-only;
// the record with the highest ts is authoritative.
type Set struct {
	GoalSetID  string       `json:"goal_set_id"`
	GoalSet    string       `json:"goal_set"`
	SHA        string       `json:"sha"`
	Branch     string       `json:"branch"`
	Repo       Repo         `json:"repo"`
	State      State        `json:"state"`
	Goals      []SetMember  `json:"goals"`
	Ts         int64        `json:"ts"`
	Provenance []Provenance `json:"provenance"`
}
