package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"goalflow/internal/goal"
)

// DataKeyContainer is the reserved key under which the redirector
// merges the resolved registration's configuration into a goal's data
// payload.
const DataKeyContainer = "container"

// RegistrationResolver resolves the external registration a container
// goal should be handed to, returning its name plus any configuration
// to merge into the goal's data payload.
type RegistrationResolver func(ctx context.Context, g goal.Event) (name string, config map[string]any, err error)

// ContainerRedirector hands container-fulfilled goals to an external
// execution environment instead of executing them locally. It rewrites
// the goal's fulfillment to point at the resolved registration and
// requests the goal with phase "scheduled".
type ContainerRedirector struct {
	registration string
	resolve      RegistrationResolver
}

// NewContainerRedirector creates a redirector targeting registration.
// resolve may be nil, in which case goals are handed to registration
// as-is with no extra configuration.
func NewContainerRedirector(registration string, resolve RegistrationResolver) *ContainerRedirector {
	return &ContainerRedirector{registration: registration, resolve: resolve}
}

// Supports reports whether g can be redirected.
func (r *ContainerRedirector) Supports(g *goal.Event) bool {
	return g.Fulfillment.Method == goal.FulfillContainer
}

// Redirect rewrites g's fulfillment to the resolved external
// registration, merges the registration's configuration into the data
// payload under DataKeyContainer, and requests the goal.
func (r *ContainerRedirector) Redirect(ctx context.Context, m *Mutator, g goal.Event) (goal.Event, error) {
	if !r.Supports(&g) {
		return goal.Event{}, fmt.Errorf("goal %s is not container-fulfilled", g.Key())
	}

	name := r.registration
	var config map[string]any
	if r.resolve != nil {
		var err error
		name, config, err = r.resolve(ctx, g)
		if err != nil {
			return goal.Event{}, fmt.Errorf("resolve registration for %s: %w", g.Key(), err)
		}
	}

	data, err := mergeData(g.Data, DataKeyContainer, config)
	if err != nil {
		return goal.Event{}, fmt.Errorf("merge container config for %s: %w", g.Key(), err)
	}

	phase := "scheduled"
	fulfillment := goal.Fulfillment{
		Method:       goal.FulfillContainer,
		Name:         name,
		Registration: name,
	}
	return m.Update(ctx, g, Update{
		State:       goal.Requested,
		Description: fmt.Sprintf("Scheduled: %s on %s", g.Name, name),
		Phase:       &phase,
		Data:        data,
		Fulfillment: &fulfillment,
	})
}

// mergeData sets payload[key] = config inside the JSON object encoded
// in data, preserving all other keys. An empty data string is treated
// as an empty object; a nil config leaves data unchanged.
func mergeData(data, key string, config map[string]any) (string, error) {
	if config == nil {
		return data, nil
	}

	payload := map[string]any{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return "", fmt.Errorf("data payload is not a JSON object: %w", err)
		}
	}
	payload[key] = config

	merged, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(merged), nil
}
