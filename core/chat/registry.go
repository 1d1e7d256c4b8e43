// Package chat routes chat requests to provider adapters and drives the
// per-exchange lifecycle: session resolution, history append, provider call,
// and response aggregation.
package chat

import (
	"fmt"
	"strings"

	"github.com/okalas/relay/providers/ai"
)

// Registration binds a provider adapter to the models it serves. Model
// membership is declared, not guessed: an exact model set plus the model-name
// prefixes the provider owns.
type Registration struct {
	// ID is the provider identifier ("openai", "anthropic", "groq").
	ID string

	// Provider is the adapter; nil when the provider was declared but could
	// not be configured (missing credential).
	Provider ai.Provider

	// Models is the exact set of model names served.
	Models []string

	// Prefixes are the model-name prefixes owned by this provider
	// ("gpt-", "claude-", "llama-").
	Prefixes []string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// Unconfigured holds the reason the provider is unusable, empty when the
	// adapter is live.
	Unconfigured string
}

// available reports whether the registration can actually serve traffic.
func (r *Registration) available() bool {
	return r.Provider != nil && r.Unconfigured == ""
}

// Registry resolves model names to provider registrations. It is built once
// at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	order           []*Registration
	byID            map[string]*Registration
	defaultProvider string
}

// NewRegistry builds a registry from the given registrations, preserving
// their order for prefix matching. defaultProvider names the registration
// used when nothing else matches; empty disables the fallback.
func NewRegistry(registrations []*Registration, defaultProvider string) (*Registry, error) {
	registry := &Registry{
		byID:            make(map[string]*Registration, len(registrations)),
		defaultProvider: defaultProvider,
	}

	for _, registration := range registrations {
		if registration.ID == "" {
			return nil, fmt.Errorf("registration with empty provider id")
		}
		if _, dup := registry.byID[registration.ID]; dup {
			return nil, fmt.Errorf("duplicate provider registration: %s", registration.ID)
		}
		registry.byID[registration.ID] = registration
		registry.order = append(registry.order, registration)
	}

	if defaultProvider != "" {
		if _, ok := registry.byID[defaultProvider]; !ok {
			return nil, fmt.Errorf("default provider %q is not registered", defaultProvider)
		}
	}

	return registry, nil
}

// Provider returns the registration for a provider id.
func (registry *Registry) Provider(id string) (*Registration, bool) {
	registration, ok := registry.byID[id]
	return registration, ok
}

// Registrations returns the registrations in registration order.
func (registry *Registry) Registrations() []*Registration {
	return registry.order
}

// Resolve maps a model name to the registration that serves it: exact
// model-set membership first, then declared prefixes, then the default
// provider. A model nobody claims and no default yields ErrUnsupportedModel;
// a match on an unconfigured provider yields a *ConfigurationError naming
// that provider.
func (registry *Registry) Resolve(model string) (*Registration, error) {
	if match := registry.match(model); match != nil {
		return registry.check(match)
	}

	if registry.defaultProvider != "" {
		return registry.check(registry.byID[registry.defaultProvider])
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
}

func (registry *Registry) match(model string) *Registration {
	if model == "" {
		return nil
	}

	for _, registration := range registry.order {
		for _, known := range registration.Models {
			if known == model {
				return registration
			}
		}
	}

	for _, registration := range registry.order {
		for _, prefix := range registration.Prefixes {
			if strings.HasPrefix(model, prefix) {
				return registration
			}
		}
	}

	return nil
}

func (registry *Registry) check(registration *Registration) (*Registration, error) {
	if !registration.available() {
		reason := registration.Unconfigured
		if reason == "" {
			reason = "no adapter"
		}
		return nil, &ConfigurationError{Provider: registration.ID, Reason: reason}
	}
	return registration, nil
}

// Models lists every model name served by available providers, in
// registration order. Used by the model listing endpoint.
func (registry *Registry) Models() []string {
	var models []string
	for _, registration := range registry.order {
		if !registration.available() {
			continue
		}
		models = append(models, registration.Models...)
	}
	return models
}
