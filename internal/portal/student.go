package portal

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/enrollment"
	"github.com/enrollhub/enrollhub/internal/platform/httpx"
	"github.com/enrollhub/enrollhub/internal/routing"
	"github.com/enrollhub/enrollhub/internal/workspace"
)

const (
	tabEnrolled  = "enrolled"
	tabAvailable = "available"
)

type studentPage struct {
	Tab      string
	Enrolled []api.Course
	All      []api.Course
}

type courseForm struct {
	CourseID int64 `validate:"required,gt=0"`
}

func (h *Handler) showStudent(w http.ResponseWriter, r *http.Request) {
	_, ws, id := h.session(r)
	if h.follow(w, r, routing.Resolve(id, routing.PathStudent, h.adminURL)) {
		return
	}
	store, _ := ws.Student()
	if !store.Loaded() || store.Stale() || reloadRequested(r) {
		if err := store.Load(r.Context()); err != nil {
			h.logger.Warn("load student courses", slog.Any("error", err))
			if h.expired(w, r, err) {
				return
			}
			h.renderError(w, r, id, api.ActionFetchCourses.Failed, "")
			return
		}
	}

	tab := r.URL.Query().Get("tab")
	if tab != tabAvailable {
		tab = tabEnrolled
	}
	snap := store.Snapshot()
	h.render(w, r, http.StatusOK, "pages/student.html", "Student Dashboard", id, studentPage{
		Tab:      tab,
		Enrolled: snap.Enrolled,
		All:      snap.All,
	})
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	h.studentAction(w, r, "enroll", api.ActionEnroll, "Enrolled in course", func(a *enrollment.Handler, courseID int64) (enrollment.Result, error) {
		return a.Enroll(r.Context(), courseID)
	})
}

func (h *Handler) handleDrop(w http.ResponseWriter, r *http.Request) {
	h.studentAction(w, r, "drop", api.ActionDrop, "Course dropped", func(a *enrollment.Handler, courseID int64) (enrollment.Result, error) {
		return a.Drop(r.Context(), courseID)
	})
}

type studentActionFunc func(*enrollment.Handler, int64) (enrollment.Result, error)

func (h *Handler) studentAction(w http.ResponseWriter, r *http.Request, name string, action api.Action, done string, run studentActionFunc) {
	back := routing.PathStudent + "?tab=" + tabAvailable
	sess, ws, id := h.session(r)
	if d := routing.Resolve(id, routing.PathStudent, h.adminURL); d.Kind != routing.Render {
		h.denied(w, r, d)
		return
	}

	courseID, ok := h.parseCourseForm(r)
	if !ok {
		h.fail(w, r, http.StatusBadRequest, action.Rejected, back)
		return
	}
	actions, err := h.mountStudent(r, ws)
	if err != nil {
		h.logger.Warn("load student courses", slog.Any("error", err))
		if h.expired(w, r, err) {
			return
		}
		h.fail(w, r, http.StatusBadGateway, api.ActionFetchCourses.Failed, back)
		return
	}

	res, err := run(actions, courseID)
	mirrorUpstream(sess, ws)
	if err != nil {
		status, message, outcome := actionError(err, action)
		h.metrics.ObserveAction(name, outcome)
		h.logger.Warn("student action failed", slog.String("action", name), slog.Int64("course_id", courseID), slog.String("user", id.Username), slog.Any("error", err))
		if h.expired(w, r, err) {
			return
		}
		h.fail(w, r, status, message, back)
		return
	}
	h.metrics.ObserveAction(name, outcomeOK)
	if res.Shared {
		h.logger.Info("duplicate submission joined in-flight action", slog.String("action", name), slog.Int64("course_id", courseID))
	}
	h.succeed(w, r, done, back)
}

// mountStudent returns the action handler of a loaded student store, loading
// it when the browser posts before ever rendering the dashboard or after it
// went stale.
func (h *Handler) mountStudent(r *http.Request, ws *workspace.Workspace) (*enrollment.Handler, error) {
	store, actions := ws.Student()
	if store.Loaded() && !store.Stale() {
		return actions, nil
	}
	if err := store.Load(r.Context()); err != nil {
		return nil, err
	}
	return actions, nil
}

func (h *Handler) parseCourseForm(r *http.Request) (int64, bool) {
	raw := r.PostFormValue("course_id")
	courseID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	if err := h.validator.Struct(courseForm{CourseID: courseID}); err != nil {
		return 0, false
	}
	return courseID, true
}

// denied answers an action posted by an identity that may not see the page.
func (h *Handler) denied(w http.ResponseWriter, r *http.Request, d routing.Decision) {
	if httpx.WantsJSON(r) {
		httpx.Problem(w, r, http.StatusForbidden, "Permission denied")
		return
	}
	h.follow(w, r, d)
}
