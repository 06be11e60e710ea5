// Package grading updates one student's grade in one course and patches the
// mounted roster once the server has accepted it.
package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/catalog"
)

// Requester issues the grade update call.
type Requester interface {
	UpdateGrade(ctx context.Context, update api.GradeUpdate) error
}

// Roster is the view state a grade update patches.
type Roster interface {
	CourseID() int64
	PatchGrade(studentID int64, grade float64) error
}

// ErrWrongCourse is returned when the update targets a course other than the
// mounted roster's.
var ErrWrongCourse = errors.New("grading: roster belongs to another course")

// Editor commits grade edits for one client session.
type Editor struct {
	api    Requester
	logger *slog.Logger
	group  singleflight.Group
}

// NewEditor constructs an Editor.
func NewEditor(api Requester, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{api: api, logger: logger}
}

// UpdateGrade sends raw as the grade of studentID in roster's course. The
// value is not range checked here; the server decides. On success the
// matching roster row is patched, on failure nothing changes. A confirmed
// grade for a student the roster does not list leaves the roster stale and
// still succeeds.
func (e *Editor) UpdateGrade(ctx context.Context, roster Roster, studentID, courseID int64, raw string) error {
	if roster.CourseID() != courseID {
		return ErrWrongCourse
	}
	value := api.ParseGradeValue(raw)
	key := fmt.Sprintf("grade:%d:%d:%s", courseID, studentID, value.Raw())

	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		err := e.api.UpdateGrade(detached, api.GradeUpdate{StudentID: studentID, CourseID: courseID, Value: value})
		if err != nil {
			return nil, err
		}
		number, ok := value.Number()
		if !ok {
			e.logger.Warn("server accepted non-numeric grade", slog.Int64("course_id", courseID), slog.Int64("student_id", studentID))
			return nil, nil
		}
		return nil, roster.PatchGrade(studentID, number)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if errors.Is(res.Err, catalog.ErrDisposed) {
			e.logger.Info("grade confirmed after view disposed", slog.Int64("course_id", courseID))
			return nil
		}
		if errors.Is(res.Err, catalog.ErrUnknownEntry) {
			e.logger.Warn("grade confirmed for student missing from roster", slog.Int64("course_id", courseID), slog.Int64("student_id", studentID))
			return nil
		}
		if res.Err != nil {
			return fmt.Errorf("update grade: %w", res.Err)
		}
		return nil
	}
}
