package portal

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/catalog"
	"github.com/enrollhub/enrollhub/internal/platform/httpx"
	"github.com/enrollhub/enrollhub/internal/routing"
	"github.com/enrollhub/enrollhub/internal/shared"
	"github.com/enrollhub/enrollhub/internal/workspace"
)

const sessionExpiredMessage = "Your session has expired. Please log in again."

// outcome labels for the action counter.
const (
	outcomeOK       = "ok"
	outcomeLocal    = "local"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// actionError turns an action failure into the status and message shown to
// the user.
func actionError(err error, action api.Action) (int, string, string) {
	var apiErr *api.Error
	switch {
	case errors.Is(err, catalog.ErrCourseFull):
		return http.StatusConflict, "Course is full", outcomeLocal
	case errors.Is(err, catalog.ErrNotEnrolled):
		return http.StatusConflict, "Not enrolled in this course", outcomeLocal
	case errors.Is(err, catalog.ErrUnknownCourse), errors.Is(err, catalog.ErrUnknownEntry):
		return http.StatusNotFound, action.Rejected, outcomeLocal
	case errors.Is(err, catalog.ErrDisposed):
		return http.StatusConflict, action.Failed, outcomeLocal
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		return status, api.UserMessage(err, action), outcomeRejected
	default:
		return http.StatusBadGateway, api.UserMessage(err, action), outcomeFailed
	}
}

// fail reports an error either as a problem document or as a flash message
// followed by a redirect to back.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, message, back string) {
	if httpx.WantsJSON(r) {
		httpx.Problem(w, r, status, message)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashError, Message: message})
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) succeed(w http.ResponseWriter, r *http.Request, message, back string) {
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: message})
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// expired ends the client state of a session whose API cookie the server no
// longer accepts and sends the browser to the login page. It reports whether
// err was such a rejection.
func (h *Handler) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		return false
	}
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.workspaces.Close(sess.ID)
		sess.SetUpstream(nil)
		h.logger.Info("enrollment api session expired", slog.String("path", r.URL.Path))
	}
	if httpx.WantsJSON(r) {
		httpx.Problem(w, r, http.StatusUnauthorized, sessionExpiredMessage)
		return true
	}
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashInfo, Message: sessionExpiredMessage})
	}
	http.Redirect(w, r, routing.PathLogin, http.StatusSeeOther)
	return true
}

// mirrorUpstream copies cookies the API set since the last request into the
// browser session so they survive a portal restart.
func mirrorUpstream(sess *shared.Session, ws *workspace.Workspace) {
	if sess == nil || ws == nil || ws.Disposed() {
		return
	}
	cookies := ws.Conn().Cookies()
	if maps.Equal(cookies, sess.Upstream()) {
		return
	}
	sess.SetUpstream(cookies)
}
