// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package connections

import (
	"context"
	"fmt"
)

// Identity is a normalized external identity. It carries facts only.
type Identity struct {
	Provider string
	UID      string // provider-scoped unique id
	Email    string
	Login    string
	Extra    map[string]any
}

// Provider is a sign-in method that can be linked to an account.
type Provider interface {
	// ID is the stable identifier stored on social accounts.
	ID() string
	// Name is the human readable provider name.
	Name() string
}

// OAuthProvider is a provider connected through a server-side OAuth2 round trip.
type OAuthProvider interface {
	Provider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Registry holds the configured providers in registration order.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry registers the given providers. Later duplicates replace earlier ones.
func NewRegistry(list ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range list {
		if _, ok := r.providers[p.ID()]; !ok {
			r.order = append(r.order, p.ID())
		}
		r.providers[p.ID()] = p
	}
	return r
}

// Get returns the provider by id.
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return p, nil
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id])
	}
	return out
}

// Name returns the display name for a provider id, falling back to the id.
func (r *Registry) Name(id string) string {
	if p, ok := r.providers[id]; ok {
		return p.Name()
	}
	return id
}

// PersonaProvider is connected client-side through the Persona login form.
type PersonaProvider struct{}

func (PersonaProvider) ID() string   { return "persona" }
func (PersonaProvider) Name() string { return "Persona" }
