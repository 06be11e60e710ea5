package portal

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/catalog"
	"github.com/enrollhub/enrollhub/internal/routing"
	"github.com/enrollhub/enrollhub/internal/workspace"
)

type teacherPage struct {
	Courses []api.Course
}

type coursePage struct {
	CourseID int64
	Heading  string
	Course   *api.Course
	Students []api.RosterEntry
}

type gradeForm struct {
	StudentID int64 `validate:"required,gt=0"`
}

func (h *Handler) showTeacher(w http.ResponseWriter, r *http.Request) {
	_, ws, id := h.session(r)
	if h.follow(w, r, routing.Resolve(id, routing.PathTeacher, h.adminURL)) {
		return
	}
	store := ws.Teacher()
	if !store.Loaded() || reloadRequested(r) {
		if err := store.Load(r.Context()); err != nil {
			h.logger.Warn("load teacher courses", slog.Any("error", err))
			if h.expired(w, r, err) {
				return
			}
			h.renderError(w, r, id, api.ActionFetchCourses.Failed, "")
			return
		}
	}
	h.render(w, r, http.StatusOK, "pages/teacher.html", "Teacher Dashboard", id, teacherPage{Courses: store.Courses()})
}

func (h *Handler) showCourse(w http.ResponseWriter, r *http.Request) {
	_, ws, id := h.session(r)
	d := routing.Resolve(id, r.URL.Path, h.adminURL)
	if h.follow(w, r, d) {
		return
	}
	roster, err := h.mountRoster(r, ws, d.CourseID, reloadRequested(r))
	if err != nil {
		h.logger.Warn("load course details", slog.Int64("course_id", d.CourseID), slog.Any("error", err))
		if h.expired(w, r, err) {
			return
		}
		h.renderError(w, r, id, api.ActionCourseDetails.Failed, routing.PathTeacher)
		return
	}

	page := coursePage{CourseID: d.CourseID, Heading: "Course Details", Students: roster.Entries()}
	if course, ok := roster.Course(); ok {
		page.Heading = course.Name
		page.Course = &course
	}
	h.render(w, r, http.StatusOK, "pages/course.html", page.Heading, id, page)
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || courseID <= 0 {
		http.NotFound(w, r)
		return
	}
	back := routing.CoursePath(courseID)
	sess, ws, id := h.session(r)
	if d := routing.Resolve(id, back, h.adminURL); d.Kind != routing.Render {
		h.denied(w, r, d)
		return
	}

	studentID, err := strconv.ParseInt(r.PostFormValue("student_id"), 10, 64)
	if err != nil || h.validator.Struct(gradeForm{StudentID: studentID}) != nil {
		h.fail(w, r, http.StatusBadRequest, api.ActionUpdateGrade.Rejected, back)
		return
	}
	roster, err := h.mountRoster(r, ws, courseID, false)
	if err != nil {
		h.logger.Warn("load course details", slog.Int64("course_id", courseID), slog.Any("error", err))
		if h.expired(w, r, err) {
			return
		}
		h.fail(w, r, http.StatusBadGateway, api.ActionCourseDetails.Failed, back)
		return
	}

	err = ws.Grades().UpdateGrade(r.Context(), roster, studentID, courseID, r.PostFormValue("value"))
	mirrorUpstream(sess, ws)
	if err != nil {
		status, message, outcome := actionError(err, api.ActionUpdateGrade)
		h.metrics.ObserveAction("grade", outcome)
		h.logger.Warn("grade update failed", slog.Int64("course_id", courseID), slog.Int64("student_id", studentID), slog.Any("error", err))
		if h.expired(w, r, err) {
			return
		}
		h.fail(w, r, status, message, back)
		return
	}
	h.metrics.ObserveAction("grade", outcomeOK)
	h.succeed(w, r, "Grade updated", back)
}

// mountRoster returns the mounted roster of courseID, loading it when it is
// not the one currently mounted or has gone stale.
func (h *Handler) mountRoster(r *http.Request, ws *workspace.Workspace, courseID int64, reload bool) (*catalog.Roster, error) {
	if !reload {
		if roster, ok := ws.Roster(courseID); ok && !roster.Stale() {
			return roster, nil
		}
	}
	return ws.OpenRoster(r.Context(), courseID)
}
