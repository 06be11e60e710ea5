// Package routing decides which view an identity may see for a requested path.
package routing

import (
	"strconv"
	"strings"

	"github.com/enrollhub/enrollhub/internal/identity"
)

// View identifies one of the portal's screens.
type View int

const (
	// ViewNone marks paths that never render a screen of their own.
	ViewNone View = iota
	ViewLogin
	ViewStudent
	ViewTeacher
	ViewCourseDetail
)

// Portal paths.
const (
	PathRoot    = "/"
	PathLogin   = "/login"
	PathStudent = "/student"
	PathTeacher = "/teacher"
	PathAdmin   = "/admin"

	courseDetailPrefix = "/teacher/course/"
)

// Kind is the shape of a routing Decision.
type Kind int

const (
	// Render shows View at the requested path.
	Render Kind = iota
	// Redirect sends the browser to Location inside the portal.
	Redirect
	// External hands the browser off to the admin surface.
	External
)

// Decision is the outcome of Resolve.
type Decision struct {
	Kind     Kind
	View     View
	Location string
	CourseID int64
}

// CoursePath returns the detail path of a course.
func CoursePath(courseID int64) string {
	return courseDetailPrefix + strconv.FormatInt(courseID, 10)
}

// DefaultPath returns the landing path of a role. Roles without a portal view
// land on the login page.
func DefaultPath(role identity.Role) string {
	switch role {
	case identity.RoleStudent:
		return PathStudent
	case identity.RoleTeacher:
		return PathTeacher
	case identity.RoleAdmin:
		return PathAdmin
	case identity.RoleUnauthenticated:
		return PathLogin
	default:
		return PathLogin
	}
}

// Resolve maps an identity and a requested path onto a decision. The admin
// destination is adminURL; it is outside the portal.
func Resolve(id identity.Identity, path, adminURL string) Decision {
	target := parse(path)

	if !id.Present() {
		if target.view == ViewLogin {
			return render(ViewLogin, 0)
		}
		return redirect(PathLogin)
	}

	switch id.Role {
	case identity.RoleStudent:
		switch {
		case target.path == PathStudent:
			return render(ViewStudent, 0)
		case target.path == PathLogin, target.path == PathRoot:
			return redirect(PathStudent)
		default:
			return redirect(PathLogin)
		}
	case identity.RoleTeacher:
		switch {
		case target.path == PathTeacher:
			return render(ViewTeacher, 0)
		case target.view == ViewCourseDetail:
			return render(ViewCourseDetail, target.courseID)
		case target.path == PathLogin, target.path == PathRoot:
			return redirect(PathTeacher)
		default:
			return redirect(PathLogin)
		}
	case identity.RoleAdmin:
		return Decision{Kind: External, Location: adminURL}
	case identity.RoleUnauthenticated:
		// Present but carrying a role this client does not know.
		if target.path == PathLogin {
			return render(ViewLogin, 0)
		}
		return redirect(PathLogin)
	default:
		if target.path == PathLogin {
			return render(ViewLogin, 0)
		}
		return redirect(PathLogin)
	}
}

type target struct {
	path     string
	view     View
	courseID int64
}

func parse(path string) target {
	if path == "" {
		path = PathRoot
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	t := target{path: path}
	switch path {
	case PathLogin:
		t.view = ViewLogin
	case PathStudent:
		t.view = ViewStudent
	case PathTeacher:
		t.view = ViewTeacher
	case PathRoot, PathAdmin:
		t.view = ViewNone
	default:
		if rest, ok := strings.CutPrefix(path, courseDetailPrefix); ok {
			if id, err := strconv.ParseInt(rest, 10, 64); err == nil && id > 0 {
				t.view, t.courseID = ViewCourseDetail, id
			}
		}
	}
	return t
}

func render(v View, courseID int64) Decision {
	return Decision{Kind: Render, View: v, CourseID: courseID}
}

func redirect(location string) Decision {
	return Decision{Kind: Redirect, Location: location}
}
