// Package portal serves the role dashboards. Each browser session is backed
// by a workspace holding its identity and the stores of the views it shows.
package portal

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/enrollhub/enrollhub/internal/identity"
	"github.com/enrollhub/enrollhub/internal/observability"
	"github.com/enrollhub/enrollhub/internal/routing"
	"github.com/enrollhub/enrollhub/internal/shared"
	"github.com/enrollhub/enrollhub/internal/view"
	"github.com/enrollhub/enrollhub/internal/workspace"
)

// Params groups the dependencies of a Handler.
type Params struct {
	Logger     *slog.Logger
	Templates  *view.Engine
	Sessions   *shared.SessionManager
	CSRF       *shared.CSRFManager
	Workspaces *workspace.Registry
	Metrics    *observability.Metrics
	AdminURL   string
	// ActionsPerMinute caps enroll, drop and grade submissions per session.
	ActionsPerMinute int
}

// Handler wires the portal pages.
type Handler struct {
	logger     *slog.Logger
	templates  *view.Engine
	sessions   *shared.SessionManager
	csrf       *shared.CSRFManager
	workspaces *workspace.Registry
	metrics    *observability.Metrics
	adminURL   string
	validator  *validator.Validate
	limit      int
}

// NewHandler constructs a Handler instance.
func NewHandler(p Params) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := p.ActionsPerMinute
	if limit <= 0 {
		limit = 30
	}
	return &Handler{
		logger:     logger,
		templates:  p.Templates,
		sessions:   p.Sessions,
		csrf:       p.CSRF,
		workspaces: p.Workspaces,
		metrics:    p.Metrics,
		adminURL:   p.AdminURL,
		validator:  validator.New(),
		limit:      limit,
	}
}

// MountRoutes registers the portal routes. The router must already run the
// session and CSRF middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.root)
	r.Get(routing.PathLogin, h.showLogin)
	r.Post(routing.PathLogin, h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get(routing.PathAdmin, h.admin)
	r.Get(routing.PathStudent, h.showStudent)
	r.Get(routing.PathTeacher, h.showTeacher)
	r.Get("/teacher/course/{id}", h.showCourse)

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(h.limit, time.Minute, httprate.WithKeyFuncs(sessionKey), httprate.WithLimitHandler(h.tooManyActions)))
		r.Post("/student/enroll", h.handleEnroll)
		r.Post("/student/drop", h.handleDrop)
		r.Post("/teacher/course/{id}/grade", h.handleGrade)
	})
}

func sessionKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.ID, nil
	}
	return httprate.KeyByIP(r)
}

func (h *Handler) tooManyActions(w http.ResponseWriter, r *http.Request) {
	h.fail(w, r, http.StatusTooManyRequests, "Too many requests, please slow down", routing.PathRoot)
}

// session returns the browser session and its workspace, resolving the
// identity on first use. A session without upstream cookies and without a
// workspace is anonymous; no workspace is opened for it and ws is nil.
func (h *Handler) session(r *http.Request) (*shared.Session, *workspace.Workspace, identity.Identity) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return nil, nil, identity.Identity{}
	}
	upstream := sess.Upstream()
	if len(upstream) == 0 {
		ws, ok := h.workspaces.Get(sess.ID)
		if !ok {
			return sess, nil, identity.Identity{}
		}
		return sess, ws, ws.Identity().Resolve(r.Context())
	}
	ws := h.workspaces.Open(sess.ID, upstream)
	id := ws.Identity().Resolve(r.Context())
	return sess, ws, id
}

// follow applies a non-render decision and reports whether it did.
func (h *Handler) follow(w http.ResponseWriter, r *http.Request, d routing.Decision) bool {
	switch d.Kind {
	case routing.Render:
		return false
	case routing.Redirect:
		http.Redirect(w, r, d.Location, http.StatusSeeOther)
		return true
	case routing.External:
		http.Redirect(w, r, d.Location, http.StatusFound)
		return true
	default:
		http.Redirect(w, r, routing.PathLogin, http.StatusSeeOther)
		return true
	}
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	_, _, id := h.session(r)
	if !h.follow(w, r, routing.Resolve(id, routing.PathRoot, h.adminURL)) {
		http.Redirect(w, r, routing.PathLogin, http.StatusSeeOther)
	}
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	_, _, id := h.session(r)
	if !h.follow(w, r, routing.Resolve(id, routing.PathAdmin, h.adminURL)) {
		http.Redirect(w, r, routing.PathLogin, http.StatusSeeOther)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, id identity.Identity, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, err := h.csrf.EnsureToken(sess)
	if err != nil {
		h.logger.Error("csrf token", slog.Any("error", err))
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Nav:         view.NavbarFor(id),
		Data:        data,
	}
	if err := h.templates.Render(w, status, page, viewData); err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type errorPage struct {
	Message string
	Back    string
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, id identity.Identity, message, back string) {
	h.render(w, r, http.StatusBadGateway, "pages/error.html", "Error", id, errorPage{Message: message, Back: back})
}

func reloadRequested(r *http.Request) bool {
	return r.URL.Query().Get("reload") == "1"
}
