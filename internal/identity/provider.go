package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/enrollhub/enrollhub/internal/api"
)

// Authenticator is the slice of the API the provider needs.
type Authenticator interface {
	CurrentUser(ctx context.Context) (api.SessionStatus, error)
	Login(ctx context.Context, username, password string) (api.User, error)
	Logout(ctx context.Context) error
}

// Provider owns the Identity of one client session. It is the only writer of
// that identity; every other component reads it through Current.
type Provider struct {
	auth   Authenticator
	logger *slog.Logger

	mu       sync.RWMutex
	identity Identity
	resolved bool
}

// NewProvider constructs a Provider with no identity.
func NewProvider(auth Authenticator, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{auth: auth, logger: logger}
}

// Resolve performs the startup session check once. A failed check leaves the
// session unauthenticated and is not retried.
func (p *Provider) Resolve(ctx context.Context) Identity {
	p.mu.RLock()
	if p.resolved {
		id := p.identity
		p.mu.RUnlock()
		return id
	}
	p.mu.RUnlock()

	status, err := p.auth.CurrentUser(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return p.identity
	}
	p.resolved = true
	if err != nil {
		p.logger.Warn("session check failed", slog.Any("error", err))
		return p.identity
	}
	if status.Authenticated && status.User != nil {
		p.identity = FromUser(*status.User)
	}
	return p.identity
}

// Current returns the identity without any network call.
func (p *Provider) Current() Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}

// Authenticate logs in against the API and, on success, installs the identity.
func (p *Provider) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	user, err := p.auth.Login(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}
	id := FromUser(user)
	p.Login(id)
	return id, nil
}

// Login installs id as the session identity.
func (p *Provider) Login(id Identity) {
	p.mu.Lock()
	p.identity = id
	p.resolved = true
	p.mu.Unlock()
}

// Logout asks the server to end the session and clears the local identity
// whatever the outcome. The server error, if any, is returned for logging only.
func (p *Provider) Logout(ctx context.Context) error {
	err := p.auth.Logout(ctx)
	if err != nil {
		p.logger.Warn("server logout failed", slog.Any("error", err))
	}
	p.mu.Lock()
	p.identity = Identity{}
	p.resolved = true
	p.mu.Unlock()
	return err
}

// FromUser converts an API account into an Identity.
func FromUser(u api.User) Identity {
	role, _ := ParseRole(u.Role)
	return Identity{ID: u.ID, Username: u.Username, Role: role}
}
