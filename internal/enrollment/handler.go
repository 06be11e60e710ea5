// Package enrollment runs enroll and drop actions against the API and patches
// the student catalog once the server has confirmed them.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/enrollhub/enrollhub/internal/catalog"
)

// Requester issues the mutating student calls.
type Requester interface {
	Enroll(ctx context.Context, courseID int64) error
	Drop(ctx context.Context, courseID int64) error
}

// Catalog is the store an action patches.
type Catalog interface {
	CanEnroll(courseID int64) error
	CanDrop(courseID int64) error
	ApplyEnrolled(courseID int64) error
	ApplyDropped(courseID int64) error
}

// Result reports how an action completed.
type Result struct {
	// Shared is true when the call joined an identical action already in flight.
	Shared bool
	// Detached is true when the server accepted but the store was disposed
	// before the patch could land.
	Detached bool
	// Stale is true when the server accepted but the cached copy no longer
	// held the course. The store must be reloaded before it is shown again.
	Stale bool
}

// errUnpatched marks a confirmed action the store could not apply.
var errUnpatched = errors.New("enrollment: confirmed action not applied")

// Handler executes enroll/drop for one client session.
type Handler struct {
	api    Requester
	store  Catalog
	logger *slog.Logger
	group  singleflight.Group
}

// NewHandler constructs a Handler.
func NewHandler(api Requester, store Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{api: api, store: store, logger: logger}
}

// Enroll enrolls in courseID. Courses the cached copy shows as full are
// rejected before any request is made.
func (h *Handler) Enroll(ctx context.Context, courseID int64) (Result, error) {
	if err := h.store.CanEnroll(courseID); err != nil {
		return Result{}, err
	}
	return h.run(ctx, fmt.Sprintf("enroll:%d", courseID), func(ctx context.Context) error {
		if err := h.api.Enroll(ctx, courseID); err != nil {
			return err
		}
		return confirmed(h.store.ApplyEnrolled(courseID))
	})
}

// Drop leaves courseID.
func (h *Handler) Drop(ctx context.Context, courseID int64) (Result, error) {
	if err := h.store.CanDrop(courseID); err != nil {
		return Result{}, err
	}
	return h.run(ctx, fmt.Sprintf("drop:%d", courseID), func(ctx context.Context) error {
		if err := h.api.Drop(ctx, courseID); err != nil {
			return err
		}
		return confirmed(h.store.ApplyDropped(courseID))
	})
}

// confirmed maps a patch failure that follows a server confirmation. Only
// disposal is passed through; a course missing from the cached copy is not an
// error of the action.
func confirmed(err error) error {
	if errors.Is(err, catalog.ErrUnknownCourse) {
		return fmt.Errorf("%w: %w", errUnpatched, err)
	}
	return err
}

func (h *Handler) run(ctx context.Context, key string, fn func(context.Context) error) (Result, error) {
	// The request outlives a caller that goes away; its result is still
	// applied, or dropped if the store was disposed meanwhile.
	detached := context.WithoutCancel(ctx)
	ch := h.group.DoChan(key, func() (interface{}, error) {
		return nil, fn(detached)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if errors.Is(res.Err, catalog.ErrDisposed) {
			h.logger.Info("action confirmed after view disposed", slog.String("action", key))
			return Result{Shared: res.Shared, Detached: true}, nil
		}
		if errors.Is(res.Err, errUnpatched) {
			h.logger.Warn("action confirmed for course missing from store", slog.String("action", key), slog.Any("error", res.Err))
			return Result{Shared: res.Shared, Stale: true}, nil
		}
		if res.Err != nil {
			return Result{Shared: res.Shared}, fmt.Errorf("%s: %w", key, res.Err)
		}
		return Result{Shared: res.Shared}, nil
	}
}
