// Package workspace keeps the client-side state of each browser session: its
// API connection, identity provider and the stores of the views it has open.
package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/catalog"
	"github.com/enrollhub/enrollhub/internal/enrollment"
	"github.com/enrollhub/enrollhub/internal/grading"
	"github.com/enrollhub/enrollhub/internal/identity"
)

// Workspace is the state one browser session holds. At most one store of each
// kind is mounted; a new course roster replaces and disposes the previous one.
type Workspace struct {
	id       string
	conn     *api.Conn
	provider *identity.Provider
	logger   *slog.Logger

	mu       sync.Mutex
	student  *catalog.StudentStore
	actions  *enrollment.Handler
	teacher  *catalog.TeacherStore
	roster   *catalog.Roster
	grades   *grading.Editor
	lastSeen time.Time
	disposed bool
}

func newWorkspace(id string, conn *api.Conn, logger *slog.Logger, now time.Time) *Workspace {
	return &Workspace{
		id:       id,
		conn:     conn,
		provider: identity.NewProvider(conn, logger),
		logger:   logger.With(slog.String("workspace", id)),
		lastSeen: now,
	}
}

// ID returns the browser session id the workspace belongs to.
func (w *Workspace) ID() string { return w.id }

// Conn returns the credentialed API connection.
func (w *Workspace) Conn() *api.Conn { return w.conn }

// Identity returns the session's provider.
func (w *Workspace) Identity() *identity.Provider { return w.provider }

// Student returns the student catalog and its action handler, mounting them
// on first use.
func (w *Workspace) Student() (*catalog.StudentStore, *enrollment.Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.student == nil {
		w.student = catalog.NewStudentStore(w.conn, w.logger)
		w.actions = enrollment.NewHandler(w.conn, w.student, w.logger)
		if w.disposed {
			w.student.Dispose()
		}
	}
	return w.student, w.actions
}

// Teacher returns the teacher catalog, mounting it on first use.
func (w *Workspace) Teacher() *catalog.TeacherStore {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.teacher == nil {
		w.teacher = catalog.NewTeacherStore(w.conn, w.logger)
		if w.disposed {
			w.teacher.Dispose()
		}
	}
	return w.teacher
}

// Grades returns the grade editor.
func (w *Workspace) Grades() *grading.Editor {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.grades == nil {
		w.grades = grading.NewEditor(w.conn, w.logger)
	}
	return w.grades
}

// Roster returns the mounted roster when it belongs to courseID.
func (w *Workspace) Roster(courseID int64) (*catalog.Roster, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.roster == nil || w.roster.CourseID() != courseID {
		return nil, false
	}
	return w.roster, true
}

// OpenRoster loads the roster of courseID and mounts it, disposing whatever
// roster was mounted before.
func (w *Workspace) OpenRoster(ctx context.Context, courseID int64) (*catalog.Roster, error) {
	roster, err := w.Teacher().LoadRoster(ctx, courseID)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		roster.Dispose()
		return nil, catalog.ErrDisposed
	}
	if w.roster != nil {
		w.roster.Dispose()
	}
	w.roster = roster
	return roster, nil
}

// Disposed reports whether the workspace has been torn down.
func (w *Workspace) Disposed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disposed
}

// dispose tears down every mounted store. Requests still in flight complete
// but their patches are discarded.
func (w *Workspace) dispose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disposed {
		return
	}
	w.disposed = true
	if w.student != nil {
		w.student.Dispose()
	}
	if w.teacher != nil {
		w.teacher.Dispose()
	}
	if w.roster != nil {
		w.roster.Dispose()
	}
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}
