package oauth

import (
	"context"
	"fmt"

	"github.com/abhayc-main/next-starter/internal/domain"
)

// Flow runs the redirect and callback halves of an authorization code
// sign-in.
type Flow struct {
	providers *Registry
	states    *StateStore
}

// NewFlow creates a flow over the given providers and state store.
func NewFlow(providers *Registry, states *StateStore) *Flow {
	return &Flow{providers: providers, states: states}
}

// Providers returns the registry backing the flow.
func (f *Flow) Providers() *Registry {
	return f.providers
}

// Authorization is a started sign-in: the consent URL to send the browser to
// and the state the callback must present. Callers bind State to the
// browser that started the flow.
type Authorization struct {
	URL   string
	State string
}

// Begin records state for provider and returns the consent URL. returnTo is
// handed back by Complete.
func (f *Flow) Begin(ctx context.Context, provider, returnTo string) (Authorization, error) {
	p, err := f.providers.Get(provider)
	if err != nil {
		return Authorization{}, err
	}

	nonce, err := randomToken(16)
	if err != nil {
		return Authorization{}, err
	}
	state, err := f.states.Issue(ctx, StateEntry{Provider: p.Name(), Nonce: nonce, ReturnTo: returnTo})
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{URL: p.AuthCodeURL(state, nonce), State: state}, nil
}

// Callback is the verified result of a provider callback.
type Callback struct {
	Identity domain.Identity
	ReturnTo string
}

// Complete redeems state, exchanges code with the provider and returns the
// verified identity. The state must have been issued for the same provider.
func (f *Flow) Complete(ctx context.Context, provider, code, state string) (Callback, error) {
	p, err := f.providers.Get(provider)
	if err != nil {
		return Callback{}, err
	}

	entry, err := f.states.Redeem(ctx, state)
	if err != nil {
		return Callback{}, err
	}
	if entry.Provider != p.Name() {
		return Callback{}, ErrInvalidState
	}
	if code == "" {
		return Callback{}, fmt.Errorf("%w: missing authorization code", ErrExchangeFailed)
	}

	identity, err := p.Exchange(ctx, code, entry.Nonce)
	if err != nil {
		return Callback{}, err
	}
	return Callback{Identity: identity, ReturnTo: entry.ReturnTo}, nil
}
