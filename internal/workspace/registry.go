package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/enrollhub/enrollhub/internal/api"
)

// Registry maps browser session ids onto workspaces.
type Registry struct {
	client *api.Client
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

// NewRegistry constructs a Registry. Workspaces untouched for ttl are removed
// by Sweep.
func NewRegistry(client *api.Client, logger *slog.Logger, ttl time.Duration) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{
		client: client,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
		items:  make(map[string]*Workspace),
	}
}

// Open returns the workspace of id, creating it with the given upstream
// cookies when none exists. The cookies are ignored for an existing workspace.
func (r *Registry) Open(id string, cookies map[string]string) *Workspace {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.items[id]; ok {
		ws.touch(now)
		return ws
	}
	ws := newWorkspace(id, r.client.Connect(cookies), r.logger, now)
	r.items[id] = ws
	return ws
}

// Get returns the workspace of id without creating one.
func (r *Registry) Get(id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.items[id]
	return ws, ok
}

// Close disposes and forgets the workspace of id.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	ws, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if ok {
		ws.dispose()
	}
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep disposes workspaces idle longer than the ttl and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var expired []*Workspace
	r.mu.Lock()
	for id, ws := range r.items {
		if ws.idleSince().Before(cutoff) {
			expired = append(expired, ws)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()
	for _, ws := range expired {
		ws.dispose()
	}
	if len(expired) > 0 {
		r.logger.Info("swept idle workspaces", slog.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
