// Package identity holds the authenticated user of a client session and the
// provider that resolves and clears it.
package identity

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is the closed set of roles a session can hold.
type Role int

const (
	// RoleUnauthenticated is the zero value: no identity is present.
	RoleUnauthenticated Role = iota
	RoleStudent
	RoleTeacher
	RoleAdmin
)

var titleCaser = cases.Title(language.English)

// ParseRole maps the wire value onto a Role. Values outside the known set
// report ok=false and yield RoleUnauthenticated.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student":
		return RoleStudent, true
	case "teacher":
		return RoleTeacher, true
	case "admin":
		return RoleAdmin, true
	default:
		return RoleUnauthenticated, false
	}
}

// String returns the wire value of the role.
func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	case RoleAdmin:
		return "admin"
	case RoleUnauthenticated:
		return ""
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Label returns the display name used by the navbar.
func (r Role) Label() string {
	if r == RoleUnauthenticated {
		return "Guest"
	}
	return titleCaser.String(r.String())
}

// MarshalJSON encodes the role as its wire string.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a wire string. Unknown roles decode to
// RoleUnauthenticated rather than failing, so a session carrying an
// unexpected role is routed to login.
func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r, _ = ParseRole(raw)
	return nil
}

// Identity is the authenticated user for the lifetime of a client session.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Present reports whether the identity is populated. A present identity may
// still carry RoleUnauthenticated when the server sent a role this client does
// not know.
func (i Identity) Present() bool {
	return i.ID != 0
}
