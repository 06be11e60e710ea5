package portal

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/routing"
)

type loginForm struct {
	Username string `validate:"required,max=80"`
	Password string `validate:"required,max=128"`
}

type loginPageData struct {
	Username string
	Errors   map[string]string
}

var fieldMessages = map[string]string{
	"Username": "Username is required",
	"Password": "Password is required",
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	_, _, id := h.session(r)
	if h.follow(w, r, routing.Resolve(id, routing.PathLogin, h.adminURL)) {
		return
	}
	h.render(w, r, http.StatusOK, "pages/login.html", "Login", id, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess, _, id := h.session(r)
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				if msg, ok := fieldMessages[fieldErr.Field()]; ok && fieldErr.Tag() == "required" {
					errs[fieldErr.Field()] = msg
					continue
				}
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}

	status := http.StatusBadRequest
	if len(errs) == 0 {
		// A new login starts from clean client state.
		h.workspaces.Close(sess.ID)
		ws := h.workspaces.Open(sess.ID, nil)
		sess.SetUpstream(nil)
		user, err := ws.Identity().Authenticate(r.Context(), form.Username, form.Password)
		if err == nil {
			sess.SetUpstream(ws.Conn().Cookies())
			if _, err := h.csrf.Rotate(sess); err != nil {
				h.logger.Error("rotate csrf token", slog.Any("error", err))
			}
			h.logger.Info("login", slog.String("username", user.Username), slog.String("role", user.Role.String()))
			h.follow(w, r, routing.Resolve(user, routing.PathLogin, h.adminURL))
			return
		}
		h.workspaces.Close(sess.ID)
		errs["general"] = api.UserMessage(err, api.ActionLogin)
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			status = http.StatusUnauthorized
		} else {
			status = http.StatusBadGateway
		}
	}

	h.render(w, r, status, "pages/login.html", "Login", id, loginPageData{Username: form.Username, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ws, _ := h.session(r)
	if ws != nil {
		// Local logout never waits on the server's answer.
		_ = ws.Identity().Logout(r.Context())
		h.workspaces.Close(ws.ID())
	}
	if sess != nil {
		h.sessions.Destroy(sess)
	}
	http.Redirect(w, r, routing.PathLogin, http.StatusSeeOther)
}
