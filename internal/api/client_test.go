package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/api/apitest"
	_ "github.com/enrollhub/enrollhub/testing"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	codes []int
}

func (o *recordingObserver) ObserveCall(endpoint string, status int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, endpoint)
	o.codes = append(o.codes, status)
}

func TestSessionCheckWithoutLogin(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.Client().Connect(nil)

	status, err := conn.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Authenticated)
	assert.Nil(t, status.User)
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.Client().Connect(nil)
	ctx := context.Background()

	user, err := conn.Login(ctx, "student1", apitest.StudentPassword)
	require.NoError(t, err)
	assert.Equal(t, apitest.Student1ID, user.ID)
	assert.Equal(t, "student", user.Role)
	assert.Contains(t, conn.Cookies(), apitest.SessionCookie)

	status, err := conn.CurrentUser(ctx)
	require.NoError(t, err)
	require.True(t, status.Authenticated)
	assert.Equal(t, "student1", status.User.Username)

	// a second connection seeded with the same cookies shares the session
	replay := srv.Client().Connect(conn.Cookies())
	status, err = replay.CurrentUser(ctx)
	require.NoError(t, err)
	assert.True(t, status.Authenticated)
}

func TestLoginRejected(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.Client().Connect(nil)

	_, err := conn.Login(context.Background(), "student1", "wrong")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.True(t, apiErr.Unauthorized())
	assert.Equal(t, "Invalid username or password", api.UserMessage(err, api.ActionLogin))
	assert.Empty(t, conn.Cookies())
}

func TestLogoutDropsCookie(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.LoginAs(t, "teacher1", apitest.TeacherPassword)

	require.NoError(t, conn.Logout(context.Background()))
	assert.NotContains(t, conn.Cookies(), apitest.SessionCookie)

	status, err := conn.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Authenticated)
}

func TestStudentCoursesPartitioned(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.LoginAs(t, "student1", apitest.StudentPassword)

	listing, err := conn.StudentCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, listing.Enrolled, 2)
	require.Len(t, listing.Available, 1)
	assert.True(t, listing.Enrolled[0].Enrolled)
	require.NotNil(t, listing.Enrolled[0].Grade)
	assert.InDelta(t, 85.5, *listing.Enrolled[0].Grade, 0.0001)
	assert.Equal(t, apitest.DataCourseID, listing.Available[0].ID)
	assert.Equal(t, "teacher2", listing.Available[0].TeacherName)
}

func TestServerErrorMessageSurfaced(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.LoginAs(t, "student1", apitest.StudentPassword)

	err := conn.Enroll(context.Background(), apitest.PythonCourseID)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Already enrolled in this course", api.UserMessage(err, api.ActionEnroll))
}

func TestRejectionWithoutMessageUsesFallback(t *testing.T) {
	srv := apitest.New(t)
	conn := srv.LoginAs(t, "student1", apitest.StudentPassword)
	srv.FailNext("/api/student/drop", apitest.Failure{Status: http.StatusInternalServerError})

	err := conn.Drop(context.Background(), apitest.PythonCourseID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, api.ErrUnavailable))
	assert.Equal(t, "Failed to drop course", api.UserMessage(err, api.ActionDrop))
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := apitest.NewEmpty()
	client := srv.Client()
	srv.Close()

	err := client.Connect(nil).Enroll(context.Background(), 1)
	require.ErrorIs(t, err, api.ErrUnavailable)
	assert.Equal(t, "Error enrolling in course", api.UserMessage(err, api.ActionEnroll))
}

func TestMalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	t.Cleanup(srv.Close)

	conn := api.NewClient(api.Options{BaseURL: srv.URL}).Connect(nil)
	_, err := conn.TeacherCourses(context.Background())
	require.ErrorIs(t, err, api.ErrUnavailable)
	assert.Equal(t, "Error fetching courses", api.UserMessage(err, api.ActionFetchCourses))
}

func TestRequestIDForwarded(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(`{"authenticated":false}`))
	}))
	t.Cleanup(srv.Close)

	conn := api.NewClient(api.Options{BaseURL: srv.URL + "/"}).Connect(nil)
	_, err := conn.CurrentUser(api.WithRequestID(context.Background(), "req-42"))
	require.NoError(t, err)
	assert.Equal(t, "req-42", got)
}

func TestObserverSeesEveryCall(t *testing.T) {
	srv := apitest.New(t)
	obs := &recordingObserver{}
	conn := api.NewClient(api.Options{BaseURL: srv.URL, Observer: obs}).Connect(nil)
	ctx := context.Background()

	_, _ = conn.CurrentUser(ctx)
	_, _ = conn.CourseStudents(ctx, apitest.PythonCourseID)

	assert.Equal(t, []string{"/api/user", "/api/teacher/course/{id}/students"}, obs.calls)
	assert.Equal(t, []int{http.StatusOK, http.StatusUnauthorized}, obs.codes)
}

func TestGradeValueEncoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		num  bool
	}{
		{name: "decimal", raw: "88.5", want: `88.5`, num: true},
		{name: "out of range", raw: "101", want: `101`, num: true},
		{name: "padded", raw: " 70 ", want: `70`, num: true},
		{name: "text", raw: "abc", want: `"abc"`},
		{name: "nan", raw: "NaN", want: `"NaN"`},
		{name: "empty", raw: "", want: `""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := api.ParseGradeValue(tt.raw)
			_, ok := v.Number()
			assert.Equal(t, tt.num, ok)
			raw, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}
