package api

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// User is the account record returned by the session and login endpoints.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
}

// SessionStatus is the payload of GET /api/user.
type SessionStatus struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// Course is a course record as the server renders it. Grade and Enrolled are
// only meaningful in the student listing.
type Course struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	TeacherID     int64    `json:"teacher_id,omitempty"`
	TeacherName   string   `json:"teacher_name"`
	Timeslot      string   `json:"timeslot"`
	Capacity      int      `json:"capacity"`
	EnrolledCount int      `json:"enrolled_count"`
	Grade         *float64 `json:"grade,omitempty"`
	Enrolled      bool     `json:"enrolled"`
}

// StudentCourses is the partitioned listing of GET /api/student/courses.
type StudentCourses struct {
	Enrolled  []Course `json:"enrolled_courses"`
	Available []Course `json:"available_courses"`
}

// RosterEntry is one enrolled student of a course as seen by its teacher.
type RosterEntry struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email,omitempty"`
	Grade    *float64 `json:"grade"`
}

// GradeValue is the grade a teacher typed. Decimal input is sent as a JSON
// number; anything else is forwarded verbatim as a string for the server to
// accept or reject.
type GradeValue struct {
	raw    string
	number *float64
}

// ParseGradeValue interprets user input as a decimal grade. No range check is
// applied.
func ParseGradeValue(raw string) GradeValue {
	v := GradeValue{raw: raw}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		v.number = &f
	}
	return v
}

// GradeNumber builds a numeric GradeValue.
func GradeNumber(f float64) GradeValue {
	return GradeValue{raw: strconv.FormatFloat(f, 'f', -1, 64), number: &f}
}

// Number returns the parsed value when the input was numeric.
func (v GradeValue) Number() (float64, bool) {
	if v.number == nil {
		return 0, false
	}
	return *v.number, true
}

// Raw returns the original input.
func (v GradeValue) Raw() string {
	return v.raw
}

// MarshalJSON implements json.Marshaler.
func (v GradeValue) MarshalJSON() ([]byte, error) {
	if v.number != nil {
		return json.Marshal(*v.number)
	}
	return json.Marshal(v.raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *GradeValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = GradeNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = GradeValue{raw: s}
	return nil
}

// GradeUpdate is the body of POST /api/teacher/update-grade.
type GradeUpdate struct {
	StudentID int64      `json:"student_id"`
	CourseID  int64      `json:"course_id"`
	Value     GradeValue `json:"value"`
}

type courseRequest struct {
	CourseID int64 `json:"course_id"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}
