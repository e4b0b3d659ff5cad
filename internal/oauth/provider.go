package oauth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/abhayc-main/next-starter/internal/domain"
	apperrors "github.com/abhayc-main/next-starter/pkg/errors"
)

var (
	ErrUnknownProvider = fmt.Errorf("unknown oauth provider: %w", apperrors.ErrNotFound)
	ErrProviderExists  = errors.New("oauth provider already registered")
	ErrInvalidState    = fmt.Errorf("invalid or expired oauth state: %w", apperrors.ErrUnauthorized)
	ErrExchangeFailed  = fmt.Errorf("oauth exchange failed: %w", apperrors.ErrUnauthorized)
)

// Provider is an external identity provider.
type Provider interface {
	// Name is the path segment the provider is mounted under.
	Name() string

	// AuthCodeURL returns the consent page URL for state and nonce.
	AuthCodeURL(state, nonce string) string

	// Exchange redeems an authorization code and returns the verified
	// identity. The returned identity's nonce must equal nonce.
	Exchange(ctx context.Context, code, nonce string) (domain.Identity, error)
}

// Registry holds the configured providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under p.Name().
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[p.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrProviderExists, p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
