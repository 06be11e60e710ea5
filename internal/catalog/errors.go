package catalog

import "errors"

// Local rejections raised before any network call, and the result of
// touching a store whose view has gone away.
var (
	ErrNotLoaded     = errors.New("catalog: store not loaded")
	ErrUnknownCourse = errors.New("catalog: unknown course")
	ErrCourseFull    = errors.New("catalog: course is full")
	ErrNotEnrolled   = errors.New("catalog: not enrolled in course")
	ErrUnknownEntry  = errors.New("catalog: student not on roster")
	ErrDisposed      = errors.New("catalog: store disposed")
)
