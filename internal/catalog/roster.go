package catalog

import (
	"sync"

	"github.com/enrollhub/enrollhub/internal/api"
)

// Roster is the detail view of one course: its metadata, when known, and the
// enrolled students with their grades. It lives as long as the view.
type Roster struct {
	courseID int64

	mu       sync.RWMutex
	course   *api.Course
	entries  []api.RosterEntry
	stale    bool
	disposed bool
}

func newRoster(courseID int64, course *api.Course, entries []api.RosterEntry) *Roster {
	copied := make([]api.RosterEntry, len(entries))
	for i, e := range entries {
		copied[i] = cloneEntry(e)
	}
	return &Roster{courseID: courseID, course: course, entries: copied}
}

// CourseID returns the id the roster was loaded for.
func (r *Roster) CourseID() int64 {
	return r.courseID
}

// Course returns the course metadata, if the scan found it.
func (r *Roster) Course() (api.Course, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.course == nil {
		return api.Course{}, false
	}
	return cloneCourse(*r.course), true
}

// Entries returns the roster rows in server order.
func (r *Roster) Entries() []api.RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]api.RosterEntry, len(r.entries))
	for i, e := range r.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Entry returns one student's row.
func (r *Roster) Entry(studentID int64) (api.RosterEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == studentID {
			return cloneEntry(e), true
		}
	}
	return api.RosterEntry{}, false
}

// PatchGrade sets the grade of the row matching studentID after the server
// accepted it. Every other row is left as it was. A student missing from the
// roster marks it stale.
func (r *Roster) PatchGrade(studentID int64, grade float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return ErrDisposed
	}
	for i := range r.entries {
		if r.entries[i].ID == studentID {
			g := grade
			r.entries[i].Grade = &g
			return nil
		}
	}
	r.stale = true
	return ErrUnknownEntry
}

// Stale reports whether a confirmed grade had no row to land on.
func (r *Roster) Stale() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stale
}

// Dispose detaches the roster from its view.
func (r *Roster) Dispose() {
	r.mu.Lock()
	r.disposed = true
	r.mu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (r *Roster) Disposed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disposed
}

func cloneEntry(e api.RosterEntry) api.RosterEntry {
	if e.Grade != nil {
		g := *e.Grade
		e.Grade = &g
	}
	return e
}
