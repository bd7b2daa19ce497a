package goal

import "fmt"

// SameKey reports whether two keys name the same goal. Only environment
// and unique name participate; display names are ignored.
func SameKey(a, b Key) bool {
	return a.Environment == b.Environment && a.UniqueName == b.UniqueName
}

// String renders a key for logs and error messages.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Environment, k.UniqueName)
}

// FindByKey returns the event in candidates whose goal identity matches
// key, or nil if no candidate matches. Goal sets are small (tens of
// goals), so a linear scan is fine.
func FindByKey(candidates []Event, key Key) *Event {
	for i := range candidates {
		if SameKey(candidates[i].Key(), key) {
			return &candidates[i]
		}
	}
	return nil
}

// DependsOn reports whether e directly lists key as a precondition.
func (e *Event) DependsOn(key Key) bool {
	for _, pre := range e.PreConditions {
		if SameKey(pre, key) {
			return true
		}
	}
	return false
}
