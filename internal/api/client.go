// Package api is the client of the enrollment REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// Observer receives one call per upstream request. status is 0 when the
// request never completed.
type Observer interface {
	ObserveCall(endpoint string, status int, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Observer  Observer
	Logger    *slog.Logger
}

// Client holds the shared transport to the enrollment API. Credentials live
// on the Conn values it hands out.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
	logger     *slog.Logger
}

// NewClient constructs a new client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		observer: opts.Observer,
		logger:   logger,
	}
}

// Connect returns a connection carrying the given session cookies.
func (c *Client) Connect(cookies map[string]string) *Conn {
	conn := &Conn{client: c, cookies: make(map[string]string, len(cookies))}
	for name, value := range cookies {
		conn.cookies[name] = value
	}
	return conn
}

// Conn is a credentialed connection to the API. Cookies set by the server are
// retained and replayed on later calls, like a browser's credentials mode.
type Conn struct {
	client *Client

	mu      sync.Mutex
	cookies map[string]string
}

// Cookies returns a copy of the current session cookies.
func (c *Conn) Cookies() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.cookies))
	for name, value := range c.cookies {
		out[name] = value
	}
	return out
}

// CurrentUser performs the session check.
func (c *Conn) CurrentUser(ctx context.Context) (SessionStatus, error) {
	var status SessionStatus
	err := c.do(ctx, http.MethodGet, "/api/user", "/api/user", nil, &status)
	return status, err
}

// Login exchanges credentials for a server session.
func (c *Conn) Login(ctx context.Context, username, password string) (User, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/login", "/api/login", loginRequest{Username: username, Password: password}, &resp); err != nil {
		return User{}, err
	}
	if !resp.Success || resp.User == nil {
		return User{}, &Error{Endpoint: "/api/login", Status: http.StatusOK}
	}
	return *resp.User, nil
}

// Logout ends the server session.
func (c *Conn) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", "/api/logout", nil, nil)
}

// Courses lists every course with its metadata.
func (c *Conn) Courses(ctx context.Context) ([]Course, error) {
	var courses []Course
	err := c.do(ctx, http.MethodGet, "/api/courses", "/api/courses", nil, &courses)
	return courses, err
}

// StudentCourses fetches the enrolled and available partitions.
func (c *Conn) StudentCourses(ctx context.Context) (StudentCourses, error) {
	var listing StudentCourses
	err := c.do(ctx, http.MethodGet, "/api/student/courses", "/api/student/courses", nil, &listing)
	return listing, err
}

// Enroll enrolls the current student in a course.
func (c *Conn) Enroll(ctx context.Context, courseID int64) error {
	return c.do(ctx, http.MethodPost, "/api/student/enroll", "/api/student/enroll", courseRequest{CourseID: courseID}, nil)
}

// Drop removes the current student from a course.
func (c *Conn) Drop(ctx context.Context, courseID int64) error {
	return c.do(ctx, http.MethodPost, "/api/student/drop", "/api/student/drop", courseRequest{CourseID: courseID}, nil)
}

// TeacherCourses lists the courses owned by the current teacher.
func (c *Conn) TeacherCourses(ctx context.Context) ([]Course, error) {
	var courses []Course
	err := c.do(ctx, http.MethodGet, "/api/teacher/courses", "/api/teacher/courses", nil, &courses)
	return courses, err
}

// CourseStudents fetches the roster of one course.
func (c *Conn) CourseStudents(ctx context.Context, courseID int64) ([]RosterEntry, error) {
	var roster []RosterEntry
	path := fmt.Sprintf("/api/teacher/course/%d/students", courseID)
	err := c.do(ctx, http.MethodGet, path, "/api/teacher/course/{id}/students", nil, &roster)
	return roster, err
}

// UpdateGrade sets the grade of one student in one course.
func (c *Conn) UpdateGrade(ctx context.Context, update GradeUpdate) error {
	return c.do(ctx, http.MethodPost, "/api/teacher/update-grade", "/api/teacher/update-grade", update, nil)
}

func (c *Conn) do(ctx context.Context, method, path, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s: %w", endpoint, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.client.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build %s: %w", endpoint, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID(ctx))
	if header := c.cookieHeader(); header != "" {
		req.Header.Set("Cookie", header)
	}

	start := time.Now()
	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		c.client.observe(endpoint, 0, time.Since(start))
		c.client.logger.Error("api request", slog.String("endpoint", endpoint), slog.Any("error", err))
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.client.observe(endpoint, resp.StatusCode, time.Since(start))
	c.storeCookies(resp.Cookies())

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.client.logger.Error("api read body", slog.String("endpoint", endpoint), slog.Any("error", err))
		return fmt.Errorf("%w: read %s: %w", ErrUnavailable, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(payload, &eb)
		c.client.logger.Warn("api rejected", slog.String("endpoint", endpoint), slog.Int("status", resp.StatusCode), slog.String("message", eb.Error))
		return &Error{Endpoint: endpoint, Status: resp.StatusCode, Message: eb.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		c.client.logger.Error("api decode", slog.String("endpoint", endpoint), slog.Any("error", err))
		return fmt.Errorf("%w: decode %s: %w", ErrUnavailable, endpoint, err)
	}
	return nil
}

func (c *Client) observe(endpoint string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveCall(endpoint, status, elapsed)
	}
}

func (c *Conn) cookieHeader() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.cookies))
	for name := range c.cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: c.cookies[name]}).String())
	}
	return strings.Join(parts, "; ")
}

func (c *Conn) storeCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range cookies {
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(now))
		if expired || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}
}

type requestIDKey struct{}

// WithRequestID attaches a correlation id forwarded upstream as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, _ := ctx.Value(requestIDKey{}).(string); id != "" {
		return id
	}
	return uuid.NewString()
}
