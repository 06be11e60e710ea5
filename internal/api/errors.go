package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnavailable marks requests that never produced a usable response:
// transport failures and bodies that could not be decoded.
var ErrUnavailable = errors.New("api: enrollment service unavailable")

// Error is an application error reported by the server with a non-2xx status.
type Error struct {
	Endpoint string
	Status   int
	// Message is the body's "error" field, empty when absent.
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s returned %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s returned %d", e.Endpoint, e.Status)
}

// Unauthorized reports whether the server rejected the session itself.
func (e *Error) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// Action carries the generic user-facing messages of one user action.
type Action struct {
	// Rejected is shown when the server refused without a message.
	Rejected string
	// Failed is shown when the request never completed.
	Failed string
}

// Messages used by the dashboards.
var (
	ActionEnroll        = Action{Rejected: "Failed to enroll in course", Failed: "Error enrolling in course"}
	ActionDrop          = Action{Rejected: "Failed to drop course", Failed: "Error dropping course"}
	ActionUpdateGrade   = Action{Rejected: "Failed to update grade", Failed: "Error updating grade"}
	ActionFetchCourses  = Action{Rejected: "Failed to fetch courses", Failed: "Error fetching courses"}
	ActionCourseDetails = Action{Rejected: "Failed to fetch course details", Failed: "Error fetching course details"}
	ActionLogin         = Action{Rejected: "Invalid username or password", Failed: "Error logging in"}
)

// UserMessage returns the text surfaced to the user for err: the server's
// message verbatim when it sent one, otherwise the action's fallback.
func UserMessage(err error, action Action) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return action.Rejected
	}
	return action.Failed
}
