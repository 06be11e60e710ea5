// Package catalog holds the client-side copies of course records for the
// mounted view: the student's enrolled/available listing, the teacher's owned
// courses and one course roster.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/enrollhub/enrollhub/internal/api"
)

// StudentSource fetches the student listing.
type StudentSource interface {
	StudentCourses(ctx context.Context) (api.StudentCourses, error)
}

// StudentSnapshot is a point-in-time copy of the student store.
type StudentSnapshot struct {
	Loaded    bool
	Enrolled  []api.Course
	Available []api.Course
	All       []api.Course
}

// StudentStore caches the courses visible to one student. Courses are held in
// a single map keyed by id; the enrolled and available partitions are derived
// from each record's Enrolled flag on every read.
type StudentStore struct {
	src    StudentSource
	logger *slog.Logger

	mu       sync.RWMutex
	courses  map[int64]api.Course
	order    []int64
	loaded   bool
	stale    bool
	disposed bool
}

// NewStudentStore constructs an empty store.
func NewStudentStore(src StudentSource, logger *slog.Logger) *StudentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudentStore{src: src, logger: logger, courses: make(map[int64]api.Course)}
}

// Load fetches both partitions in one call and replaces local state wholesale.
// On failure the previous state is kept.
func (s *StudentStore) Load(ctx context.Context) error {
	if s.Disposed() {
		return ErrDisposed
	}
	listing, err := s.src.StudentCourses(ctx)
	if err != nil {
		return fmt.Errorf("load student courses: %w", err)
	}

	courses := make(map[int64]api.Course, len(listing.Enrolled)+len(listing.Available))
	order := make([]int64, 0, len(listing.Enrolled)+len(listing.Available))
	for _, c := range listing.Enrolled {
		c.Enrolled = true
		courses[c.ID] = cloneCourse(c)
		order = append(order, c.ID)
	}
	for _, c := range listing.Available {
		if _, dup := courses[c.ID]; dup {
			s.logger.Warn("course listed in both partitions", slog.Int64("course_id", c.ID))
			continue
		}
		c.Enrolled = false
		courses[c.ID] = cloneCourse(c)
		order = append(order, c.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	s.courses = courses
	s.order = order
	s.loaded = true
	s.stale = false
	return nil
}

// Loaded reports whether a listing has been installed.
func (s *StudentStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Course returns one course record.
func (s *StudentStore) Course(id int64) (api.Course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return api.Course{}, false
	}
	return cloneCourse(c), true
}

// Enrolled returns the enrolled partition in listing order.
func (s *StudentStore) Enrolled() []api.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c api.Course) bool { return c.Enrolled })
}

// Available returns the available partition in listing order.
func (s *StudentStore) Available() []api.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(c api.Course) bool { return !c.Enrolled })
}

// All returns every course, enrolled first as listed at load time.
func (s *StudentStore) All() []api.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(api.Course) bool { return true })
}

// Snapshot copies the whole store under one lock.
func (s *StudentStore) Snapshot() StudentSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StudentSnapshot{
		Loaded:    s.loaded,
		Enrolled:  s.collect(func(c api.Course) bool { return c.Enrolled }),
		Available: s.collect(func(c api.Course) bool { return !c.Enrolled }),
		All:       s.collect(func(api.Course) bool { return true }),
	}
}

// CanEnroll is the local pre-check run before an enroll request. It only
// rejects what the cached copy proves impossible; the server may still refuse.
func (s *StudentStore) CanEnroll(id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !c.Enrolled && c.EnrolledCount >= c.Capacity {
		return ErrCourseFull
	}
	return nil
}

// CanDrop is the local pre-check run before a drop request. A course the
// cached copy shows as not enrolled is rejected like the server would.
func (s *StudentStore) CanDrop(id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !c.Enrolled {
		return ErrNotEnrolled
	}
	return nil
}

// ApplyEnrolled patches the store after the server confirmed an enrollment.
// A course missing from the cached copy marks the store stale.
func (s *StudentStore) ApplyEnrolled(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(id)
	if err != nil {
		s.markStale(err)
		return err
	}
	if c.Enrolled {
		return nil
	}
	c.Enrolled = true
	c.EnrolledCount++
	c.Grade = nil
	s.courses[id] = c
	return nil
}

// ApplyDropped patches the store after the server confirmed a drop. The
// server deletes the grade with the enrollment, so the local grade goes too.
func (s *StudentStore) ApplyDropped(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(id)
	if err != nil {
		s.markStale(err)
		return err
	}
	if !c.Enrolled {
		return nil
	}
	c.Enrolled = false
	c.EnrolledCount = max(0, c.EnrolledCount-1)
	c.Grade = nil
	s.courses[id] = c
	return nil
}

// Stale reports whether a confirmed change could not be applied to the cached
// copy. The next Load clears it.
func (s *StudentStore) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// markStale must be called with s.mu held.
func (s *StudentStore) markStale(err error) {
	if errors.Is(err, ErrUnknownCourse) {
		s.stale = true
	}
}

// Dispose detaches the store from its view. Later loads and patches are
// no-ops that report ErrDisposed.
func (s *StudentStore) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.mu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (s *StudentStore) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

func (s *StudentStore) lookup(id int64) (api.Course, error) {
	if s.disposed {
		return api.Course{}, ErrDisposed
	}
	if !s.loaded {
		return api.Course{}, ErrNotLoaded
	}
	c, ok := s.courses[id]
	if !ok {
		return api.Course{}, ErrUnknownCourse
	}
	return c, nil
}

func (s *StudentStore) collect(keep func(api.Course) bool) []api.Course {
	out := make([]api.Course, 0, len(s.order))
	for _, id := range s.order {
		c := s.courses[id]
		if keep(c) {
			out = append(out, cloneCourse(c))
		}
	}
	return out
}

func cloneCourse(c api.Course) api.Course {
	if c.Grade != nil {
		g := *c.Grade
		c.Grade = &g
	}
	return c
}
