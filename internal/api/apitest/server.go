// Package apitest runs an in-memory enrollment API for tests. Its routes and
// rejection rules follow the production service.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SessionCookie is the name of the session cookie the fake issues.
const SessionCookie = "session"

// User is a seeded account.
type User struct {
	ID       int64
	Username string
	Email    string
	Password string
	Role     string
}

// Course is a seeded course.
type Course struct {
	ID          int64
	Name        string
	Description string
	Capacity    int
	Timeslot    string
	TeacherID   int64
}

// Failure is an injected response for the next call of a path.
type Failure struct {
	Status  int
	Message string
}

// Server is the fake API. All exported methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[int64]User
	courses     []Course
	enrollments map[int64][]int64
	grades      map[gradeKey]float64
	sessions    map[string]int64
	failures    map[string][]Failure
	gates       map[string]chan struct{}
	calls       map[string]int

	// GradeRange makes update-grade reject values outside 0-100.
	GradeRange bool
	// RotateSessions makes every accepted enroll, drop and grade update issue
	// a fresh session cookie and revoke the old one.
	RotateSessions bool
}

type gradeKey struct {
	student int64
	course  int64
}

// New starts a fake seeded with Seed and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := NewEmpty()
	Seed(s)
	t.Cleanup(s.Close)
	return s
}

// NewEmpty starts a fake without data. The caller must Close it.
func NewEmpty() *Server {
	s := &Server{
		users:       make(map[int64]User),
		enrollments: make(map[int64][]int64),
		grades:      make(map[gradeKey]float64),
		sessions:    make(map[string]int64),
		failures:    make(map[string][]Failure),
		gates:       make(map[string]chan struct{}),
		calls:       make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// AddUser registers an account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddCourse registers a course.
func (s *Server) AddCourse(c Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = append(s.courses, c)
}

// Enroll adds studentID to courseID directly.
func (s *Server) Enroll(studentID, courseID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[courseID] = append(s.enrollments[courseID], studentID)
}

// SetGrade stores a grade directly.
func (s *Server) SetGrade(studentID, courseID int64, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grades[gradeKey{studentID, courseID}] = value
}

// Grade returns the stored grade.
func (s *Server) Grade(studentID, courseID int64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.grades[gradeKey{studentID, courseID}]
	return v, ok
}

// EnrolledCount returns the number of students in courseID.
func (s *Server) EnrolledCount(courseID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.enrollments[courseID])
}

// FailNext queues an injected failure for the next call of path.
func (s *Server) FailNext(path string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], f)
}

// Gate holds every call of path until the returned function is called.
func (s *Server) Gate(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// ExpireSessions revokes every session the fake has issued.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]int64)
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.instrument)
	r.Post("/api/login", s.login)
	r.Post("/api/logout", s.logout)
	r.Get("/api/user", s.currentUser)
	r.Get("/api/courses", s.listCourses)
	r.Get("/api/student/courses", s.studentCourses)
	r.Post("/api/student/enroll", s.enroll)
	r.Post("/api/student/drop", s.drop)
	r.Get("/api/teacher/courses", s.teacherCourses)
	r.Get("/api/teacher/course/{id}/students", s.courseStudents)
	r.Post("/api/teacher/update-grade", s.updateGrade)
	return r
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		s.mu.Lock()
		s.calls[path]++
		gate := s.gates[path]
		var failure *Failure
		if queued := s.failures[path]; len(queued) > 0 {
			failure = &queued[0]
			s.failures[path] = queued[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		if failure != nil {
			body := map[string]any{}
			if failure.Message != "" {
				body["error"] = failure.Message
			}
			writeJSON(w, failure.Status, body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username && u.Password == in.Password {
			token := uuid.NewString()
			s.sessions[token] = u.ID
			http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": userJSON(u)})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid username or password"})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, ck.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.sessionUser(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": userJSON(u)})
}

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requireUser(w, r, ""); !ok {
		return
	}
	out := make([]map[string]any, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, s.courseJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) studentCourses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.requireUser(w, r, "student")
	if !ok {
		return
	}
	enrolled := make([]map[string]any, 0)
	available := make([]map[string]any, 0)
	for _, c := range s.courses {
		body := s.courseJSON(c)
		if s.isEnrolled(u.ID, c.ID) {
			body["enrolled"] = true
			if g, ok := s.grades[gradeKey{u.ID, c.ID}]; ok {
				body["grade"] = g
			}
			enrolled = append(enrolled, body)
			continue
		}
		body["enrolled"] = false
		available = append(available, body)
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrolled_courses": enrolled, "available_courses": available})
}

func (s *Server) enroll(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CourseID int64 `json:"course_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.requireUser(w, r, "student")
	if !ok {
		return
	}
	c, found := s.course(in.CourseID)
	if !found {
		writeError(w, http.StatusForbidden, "Permission denied or course not found")
		return
	}
	if s.isEnrolled(u.ID, c.ID) {
		writeError(w, http.StatusBadRequest, "Already enrolled in this course")
		return
	}
	if len(s.enrollments[c.ID]) >= c.Capacity {
		writeError(w, http.StatusBadRequest, "Course is full")
		return
	}
	s.enrollments[c.ID] = append(s.enrollments[c.ID], u.ID)
	s.rotate(w, r, u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) drop(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CourseID int64 `json:"course_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.requireUser(w, r, "student")
	if !ok {
		return
	}
	c, found := s.course(in.CourseID)
	if !found {
		writeError(w, http.StatusForbidden, "Permission denied or course not found")
		return
	}
	if !s.isEnrolled(u.ID, c.ID) {
		writeError(w, http.StatusBadRequest, "Not enrolled in this course")
		return
	}
	students := s.enrollments[c.ID]
	kept := students[:0]
	for _, id := range students {
		if id != u.ID {
			kept = append(kept, id)
		}
	}
	s.enrollments[c.ID] = kept
	delete(s.grades, gradeKey{u.ID, c.ID})
	s.rotate(w, r, u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) teacherCourses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.requireUser(w, r, "teacher")
	if !ok {
		return
	}
	out := make([]map[string]any, 0)
	for _, c := range s.courses {
		if c.TeacherID == u.ID {
			out = append(out, s.courseJSON(c))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) courseStudents(w http.ResponseWriter, r *http.Request) {
	courseID, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.requireUser(w, r, "")
	if !ok {
		return
	}
	c, found := s.course(courseID)
	if u.Role != "teacher" || !found || c.TeacherID != u.ID {
		writeError(w, http.StatusForbidden, "Permission denied")
		return
	}
	out := make([]map[string]any, 0)
	for _, id := range s.enrollments[c.ID] {
		student := s.users[id]
		body := userJSON(student)
		if g, ok := s.grades[gradeKey{id, c.ID}]; ok {
			body["grade"] = g
		} else {
			body["grade"] = nil
		}
		out = append(out, body)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) updateGrade(w http.ResponseWriter, r *http.Request) {
	var in struct {
		StudentID int64           `json:"student_id"`
		CourseID  int64           `json:"course_id"`
		Value     json.RawMessage `json:"value"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.requireUser(w, r, "")
	if !ok {
		return
	}
	c, found := s.course(in.CourseID)
	if u.Role != "teacher" || !found || c.TeacherID != u.ID {
		writeError(w, http.StatusForbidden, "Permission denied")
		return
	}
	if !s.isEnrolled(in.StudentID, c.ID) {
		writeError(w, http.StatusBadRequest, "Student not enrolled in this course")
		return
	}
	var value float64
	if err := json.Unmarshal(in.Value, &value); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid grade value")
		return
	}
	if s.GradeRange && (value < 0 || value > 100) {
		writeError(w, http.StatusBadRequest, "Grade must be between 0 and 100")
		return
	}
	s.grades[gradeKey{in.StudentID, c.ID}] = value
	s.rotate(w, r, u.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// rotate must be called with s.mu held.
func (s *Server) rotate(w http.ResponseWriter, r *http.Request, userID int64) {
	if !s.RotateSessions {
		return
	}
	if ck, err := r.Cookie(SessionCookie); err == nil {
		delete(s.sessions, ck.Value)
	}
	token := uuid.NewString()
	s.sessions[token] = userID
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
}

// requireUser must be called with s.mu held.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request, role string) (User, bool) {
	u, ok := s.sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not logged in")
		return User{}, false
	}
	if role != "" && u.Role != role {
		writeError(w, http.StatusForbidden, "Permission denied")
		return User{}, false
	}
	return u, true
}

func (s *Server) sessionUser(r *http.Request) (User, bool) {
	ck, err := r.Cookie(SessionCookie)
	if err != nil {
		return User{}, false
	}
	id, ok := s.sessions[ck.Value]
	if !ok {
		return User{}, false
	}
	u, ok := s.users[id]
	return u, ok
}

func (s *Server) course(id int64) (Course, bool) {
	for _, c := range s.courses {
		if c.ID == id {
			return c, true
		}
	}
	return Course{}, false
}

func (s *Server) isEnrolled(studentID, courseID int64) bool {
	for _, id := range s.enrollments[courseID] {
		if id == studentID {
			return true
		}
	}
	return false
}

func (s *Server) courseJSON(c Course) map[string]any {
	teacherName := "Unknown"
	if t, ok := s.users[c.TeacherID]; ok {
		teacherName = t.Username
	}
	return map[string]any{
		"id":             c.ID,
		"name":           c.Name,
		"description":    c.Description,
		"capacity":       c.Capacity,
		"timeslot":       c.Timeslot,
		"teacher_id":     c.TeacherID,
		"teacher_name":   teacherName,
		"enrolled_count": len(s.enrollments[c.ID]),
	}
}

func userJSON(u User) map[string]any {
	return map[string]any{"id": u.ID, "username": u.Username, "email": u.Email, "role": u.Role}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
