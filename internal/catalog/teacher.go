package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/enrollhub/enrollhub/internal/api"
)

// TeacherSource fetches the teacher's courses and rosters.
type TeacherSource interface {
	Courses(ctx context.Context) ([]api.Course, error)
	TeacherCourses(ctx context.Context) ([]api.Course, error)
	CourseStudents(ctx context.Context, courseID int64) ([]api.RosterEntry, error)
}

// TeacherStore caches the courses owned by one teacher.
type TeacherStore struct {
	src    TeacherSource
	logger *slog.Logger

	mu       sync.RWMutex
	courses  []api.Course
	loaded   bool
	disposed bool
}

// NewTeacherStore constructs an empty store.
func NewTeacherStore(src TeacherSource, logger *slog.Logger) *TeacherStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeacherStore{src: src, logger: logger}
}

// Load fetches the owned courses.
func (s *TeacherStore) Load(ctx context.Context) error {
	if s.Disposed() {
		return ErrDisposed
	}
	courses, err := s.src.TeacherCourses(ctx)
	if err != nil {
		return fmt.Errorf("load teacher courses: %w", err)
	}
	copied := make([]api.Course, len(courses))
	for i, c := range courses {
		copied[i] = cloneCourse(c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	s.courses = copied
	s.loaded = true
	return nil
}

// Loaded reports whether a listing has been installed.
func (s *TeacherStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Courses returns the owned courses in server order.
func (s *TeacherStore) Courses() []api.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Course, len(s.courses))
	for i, c := range s.courses {
		out[i] = cloneCourse(c)
	}
	return out
}

// LoadRoster fetches the course metadata and the roster of courseID at the
// same time. Metadata comes from scanning the full course list; a course
// missing from that list is not an error and leaves Roster.Course nil. A
// failure in either fetch aborts the detail view.
func (s *TeacherStore) LoadRoster(ctx context.Context, courseID int64) (*Roster, error) {
	if s.Disposed() {
		return nil, ErrDisposed
	}

	var (
		all     []api.Course
		entries []api.RosterEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		courses, err := s.src.Courses(gctx)
		if err != nil {
			return fmt.Errorf("load course metadata: %w", err)
		}
		all = courses
		return nil
	})
	g.Go(func() error {
		students, err := s.src.CourseStudents(gctx, courseID)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		entries = students
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var meta *api.Course
	for _, c := range all {
		if c.ID == courseID {
			found := cloneCourse(c)
			meta = &found
			break
		}
	}
	if meta == nil {
		s.logger.Warn("course metadata not found", slog.Int64("course_id", courseID))
	}
	return newRoster(courseID, meta, entries), nil
}

// Dispose detaches the store from its view.
func (s *TeacherStore) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (s *TeacherStore) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}
